package checkout

// Storefront actions, each guarded by its own nonce.
const (
	ActionGetPayload           = "kec_get_payload"
	ActionSetCart              = "kec_set_cart"
	ActionAuthCallback         = "kec_auth_callback"
	ActionFinalizeCallback     = "kec_finalize_callback"
	ActionOneStepInitiate      = "kec_one_step_get_initiate_body"
	ActionOneStepAddressChange = "kec_one_step_shipping_address_change"
	ActionOneStepOptionChange  = "kec_one_step_shipping_option_changed"
	ActionTwoStepInitiate      = "kec_two_step_get_initiate_body"
	ActionTwoStepAddressChange = "kec_two_step_shipping_address_change"
	ActionTwoStepOptionChange  = "kec_two_step_shipping_option_changed"
)

// Actions lists every storefront action.
func Actions() []string {
	return []string{
		ActionGetPayload,
		ActionSetCart,
		ActionAuthCallback,
		ActionFinalizeCallback,
		ActionOneStepInitiate,
		ActionOneStepAddressChange,
		ActionOneStepOptionChange,
		ActionTwoStepInitiate,
		ActionTwoStepAddressChange,
		ActionTwoStepOptionChange,
	}
}
