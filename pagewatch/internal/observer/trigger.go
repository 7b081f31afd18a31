package observer

// Trigger is a reason to rescan. Every trigger schedules a debounced scan.
type Trigger string

const (
	TriggerInitial  Trigger = "initial"
	TriggerMutation Trigger = "mutation"  // nodes inserted or removed anywhere in the document
	TriggerPageShow Trigger = "pageshow"  // restored from the back/forward cache
	TriggerPopState Trigger = "popstate"  // same-document history traversal
	TriggerVisible  Trigger = "visible"   // document became visible
	TriggerFocus    Trigger = "focus"     // window regained focus
	TriggerNavigate Trigger = "navigate"  // same-document navigation reported by the browser
	TriggerDocument Trigger = "document"  // main frame committed a new document
)

// Hard reports whether the trigger is a route change. Hard triggers forget
// the last reported count so that an unchanged count is re-asserted: the
// registry resets a tab's count on navigation independently of us.
func (t Trigger) Hard() bool {
	return t == TriggerNavigate || t == TriggerDocument || t == TriggerPageShow
}

// ParseTrigger maps an in-page signal name to a Trigger.
func ParseTrigger(s string) (Trigger, bool) {
	switch t := Trigger(s); t {
	case TriggerMutation, TriggerPageShow, TriggerPopState, TriggerVisible,
		TriggerFocus, TriggerNavigate, TriggerDocument, TriggerInitial:
		return t, true
	}
	return "", false
}
