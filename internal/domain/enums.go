package domain

// ReceiptChannel is how the requester wants the reply delivered.
type ReceiptChannel string

const (
	ChannelEmail    ReceiptChannel = "email"
	ChannelInPerson ReceiptChannel = "in_person"
	ChannelMail     ReceiptChannel = "mail"
)

// Valid reports whether c is a supported delivery channel.
func (c ReceiptChannel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelInPerson, ChannelMail:
		return true
	}
	return false
}

// ResponseKind is the outcome conveyed by a staff response.
type ResponseKind string

const (
	KindGranted            ResponseKind = "granted"
	KindPartiallyGranted   ResponseKind = "partially_granted"
	KindDenied             ResponseKind = "denied"
	KindInformationNotHeld ResponseKind = "information_not_held"
	KindForwarded          ResponseKind = "forwarded"
	KindExtensionRequested ResponseKind = "extension_requested"
)

// Valid reports whether k is a known response kind.
func (k ResponseKind) Valid() bool {
	switch k {
	case KindGranted, KindPartiallyGranted, KindDenied, KindInformationNotHeld,
		KindForwarded, KindExtensionRequested:
		return true
	}
	return false
}

// Substantive reports whether the response answers the request, as opposed to
// an extension notice.
func (k ResponseKind) Substantive() bool { return k != KindExtensionRequested }

// NeedsLegalBasis reports whether staff are expected to cite a legal basis.
// It is a UX convention surfaced to clients, not a hard constraint.
func (k ResponseKind) NeedsLegalBasis() bool {
	return k == KindDenied || k == KindExtensionRequested
}

// Event maps the response kind to the lifecycle event it drives.
func (k ResponseKind) Event() Event {
	if k == KindExtensionRequested {
		return EventRequestExtension
	}
	return EventRespond
}

// AppealInstance is the escalation tier of an appeal. Instances are filed in
// ascending order without skipping.
type AppealInstance int

const (
	InstanceFirst  AppealInstance = 1
	InstanceSecond AppealInstance = 2
	InstanceThird  AppealInstance = 3
)

// MaxAppealInstance is the highest tier the model can represent.
const MaxAppealInstance = InstanceThird

// Valid reports whether i is First, Second or Third.
func (i AppealInstance) Valid() bool { return i >= InstanceFirst && i <= InstanceThird }

// String returns the lowercase ordinal name.
func (i AppealInstance) String() string {
	switch i {
	case InstanceFirst:
		return "first"
	case InstanceSecond:
		return "second"
	case InstanceThird:
		return "third"
	}
	return "unknown"
}

// AppealDecision is the outcome of a decided appeal.
type AppealDecision string

const (
	DecisionGranted          AppealDecision = "granted"
	DecisionPartiallyGranted AppealDecision = "partially_granted"
	DecisionDenied           AppealDecision = "denied"
)

// Valid reports whether d is a known decision.
func (d AppealDecision) Valid() bool {
	switch d {
	case DecisionGranted, DecisionPartiallyGranted, DecisionDenied:
		return true
	}
	return false
}
