package protocol

// Host-channel message types.
const (
	TypeNordcraftAction  = "NORDCRAFT_ACTION"
	TypeSidebarUpdateURL = "SIDEBAR_UPDATE_URL"
	TypeSidebarReady     = "SIDEBAR_READY"
	TypeManipulateDOM    = "manipulateDom"
	TypeDOMValueChanged  = "domValueChanged"
	TypeGetData          = "getData"

	// TypeAction carries the bare-action host messages that have no type of
	// their own (captureScreenshot, overwriteText, openSidebar, ...).
	TypeAction = "action"
)

// Actions for TypeNordcraftAction.
const (
	ActionReadURL    = "READ_URL"
	ActionURLChanged = "URL_CHANGED"
)

// Bare host-channel actions (TypeAction).
const (
	ActionCaptureScreenshot = "captureScreenshot"
	ActionOverwriteText     = "overwriteText"
	ActionOpenSidebar       = "openSidebar"
	ActionShowCustomSidebar = "showCustomSidebar"
	ActionCheckSidebarState = "checkSidebarState"
)

// Sub-actions for TypeManipulateDOM.
const (
	ActionObserve = "observe"
	ActionGet     = "get"
	ActionSet     = "set"
	ActionInject  = "inject"
)

// Window-channel message types. Inbound from the panel:
const (
	TypeInjectWebComponent = "injectWebComponent"
	TypeManipulateDOMFrame = "manipulate-dom"
	TypeStartDOMObserver   = "start-dom-observer"
	TypeObserveDOMValue    = "observe-dom-value" // alias of start-dom-observer
	TypeGetDOMInfo         = "get-dom-info"
	TypeGetTabInfo         = "get-tab-info"
)

// Window-channel message types. Outbound to the panel:
const (
	TypeTabInfo       = "tab-info"
	TypeURLChanged    = "url-changed"
	TypeDOMInfoResult = "dom-info-result"
	// domValueChanged is shared with the host channel: TypeDOMValueChanged.
)

// URLChanged builds the host-channel navigation notification. Both the
// generic NORDCRAFT_ACTION/URL_CHANGED shape and the tab-info refresh carry
// the same data because existing panel listeners expect either.
func URLChanged(newURL, oldURL, title string) Envelope {
	return Envelope{
		Channel: ChannelHost,
		Type:    TypeNordcraftAction,
		Action:  ActionURLChanged,
		Payload: map[string]any{
			"url":    newURL,
			"newUrl": newURL,
			"oldUrl": oldURL,
			"title":  title,
		},
	}
}

// SidebarUpdateURL builds the background-bound tab update.
func SidebarUpdateURL(url, title, tabID string) Envelope {
	return Envelope{
		Channel: ChannelHost,
		Type:    TypeSidebarUpdateURL,
		Payload: map[string]any{"url": url, "title": title, "tabId": tabID},
	}
}

// TabInfo builds the window-channel tab snapshot sent to panels.
func TabInfo(url, title, tabID string) Envelope {
	return Envelope{
		Channel: ChannelWindow,
		Type:    TypeTabInfo,
		Payload: map[string]any{"url": url, "title": title, "tabId": tabID},
	}
}

// DOMValueChanged builds a watch notification. The watchId is the
// caller-supplied correlation id, echoed unchanged.
func DOMValueChanged(selector, attribute string, value any, watchID string) Envelope {
	return Envelope{
		Channel: ChannelWindow,
		Type:    TypeDOMValueChanged,
		Payload: map[string]any{
			"selector":  selector,
			"attribute": attribute,
			"value":     value,
			"watchId":   watchID,
		},
	}
}

// DOMInfoResult builds a one-shot read response. Value is nil when the
// selector matched nothing; requestId is echoed unchanged.
func DOMInfoResult(selector, attribute string, value any, requestID string) Envelope {
	return Envelope{
		Channel: ChannelWindow,
		Type:    TypeDOMInfoResult,
		Payload: map[string]any{
			"selector":  selector,
			"attribute": attribute,
			"value":     value,
			"requestId": requestID,
		},
	}
}
