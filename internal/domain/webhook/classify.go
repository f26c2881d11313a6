package webhook

// EffectKind is what a classified notification does to item state.
type EffectKind int

const (
	// EffectNone persists the event but changes no state. Unknown codes land
	// here so new provider codes never crash processing.
	EffectNone EffectKind = iota

	// EffectMarkError transitions the item to error with the delivered code.
	EffectMarkError

	// EffectMarkActive returns the item to active and clears its error.
	EffectMarkActive
)

type effectKey struct {
	webhookType string
	webhookCode string
}

// effects is the closed classification table mapping (type, code) to an
// effect. Codes absent from the table are EffectNone by construction.
var effects = map[effectKey]EffectKind{
	{"ITEM", "ITEM_LOGIN_REQUIRED"}:            EffectMarkError,
	{"ITEM", "ERROR"}:                          EffectMarkError,
	{"ITEM", "PENDING_EXPIRATION"}:             EffectMarkError,
	{"ITEM", "LOGIN_REPAIRED"}:                 EffectMarkActive,
	{"ITEM", "WEBHOOK_UPDATE_ACKNOWLEDGED"}:    EffectMarkActive,
	{"ITEM", "ITEM_OK"}:                        EffectMarkActive,
	{"TRANSACTIONS", "SYNC_UPDATES_AVAILABLE"}: EffectNone,
}

// Classify maps a notification to its effect on item state.
func Classify(webhookType, webhookCode string) EffectKind {
	return effects[effectKey{webhookType, webhookCode}]
}
