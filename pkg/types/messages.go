package types

type MessageType string

const (
	MsgGetPhishFeed        MessageType = "GET_PHISH_FEED"
	MsgGetToggleState      MessageType = "GET_TOGGLE_STATE"
	MsgSetToggleState      MessageType = "SET_TOGGLE_STATE"
	MsgGetSettings         MessageType = "GET_SETTINGS"
	MsgSetLanguage         MessageType = "SET_LANGUAGE"
	MsgCheckURL            MessageType = "CHECK_URL"
	MsgCheckVirusTotal     MessageType = "CHECK_VIRUSTOTAL"
	MsgResolveShortenedURL MessageType = "RESOLVE_SHORTENED_URL"
	MsgIsShortenedURL      MessageType = "IS_SHORTENED_URL"
	MsgScanPage            MessageType = "SCAN_PAGE"
	MsgForceScan           MessageType = "FORCE_SCAN"

	// Server-initiated, only on the streaming channel.
	MsgScanResult   MessageType = "SCAN_RESULT"
	MsgScanComplete MessageType = "SCAN_COMPLETE"
)

// Message is a request crossing the UI/background boundary.
type Message struct {
	ID       string       `json:"id,omitempty"`
	Type     MessageType  `json:"type"`
	URL      string       `json:"url,omitempty"`
	BaseURL  string       `json:"base_url,omitempty"`
	Enabled  *bool        `json:"enabled,omitempty"`
	Language Language     `json:"language,omitempty"`
	Page     *ScanRequest `json:"page,omitempty"`
}

// Reply answers exactly one Message. Only the fields relevant to the request
// type are populated.
type Reply struct {
	ID          string      `json:"id,omitempty"`
	Type        MessageType `json:"type"`
	Error       string      `json:"error,omitempty"`
	Success     bool        `json:"success,omitempty"`
	Enabled     *bool       `json:"enabled,omitempty"`
	Settings    *Settings   `json:"settings,omitempty"`
	PhishList   []string    `json:"phishingList,omitempty"`
	IsShortened *bool       `json:"isShortened,omitempty"`
	ResolvedURL string      `json:"resolvedUrl,omitempty"`
	Verdict     *Verdict    `json:"verdict,omitempty"`
	Result      *ScanResult `json:"result,omitempty"`
	Snapshot    *Snapshot   `json:"snapshot,omitempty"`
}
