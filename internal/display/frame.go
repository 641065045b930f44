package display

// Frame is the JSON structure sent to all display clients. It carries
// everything a screen needs to render the tracker: phase, explanatory text
// when speed cannot be shown, and the colored speed fields when it can.
type Frame struct {
	Phase      string  `json:"phase"`
	Icon       string  `json:"icon"`
	IssueText  string  `json:"issue_text,omitempty"`
	Notice     string  `json:"notice,omitempty"`
	ShowSpeed  bool    `json:"show_speed"`
	SpeedLimit int     `json:"speed_limit,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	SpeedColor string  `json:"speed_color,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	Indicator  bool    `json:"indicator"`
	Stamp      int64   `json:"stamp"` // Unix ms
}
