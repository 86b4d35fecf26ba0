package answer

// ModeFast selects the low-latency response profile of the answering service.
const ModeFast = "fast"

// Request is the body of POST /disclosure-analysis. Version is a pointer so
// that "no preference" is sent as an explicit JSON null.
type Request struct {
	Query   string  `json:"query"`
	Version *string `json:"version"`
	Mode    string  `json:"mode"`
}

// Source is one grounding reference returned alongside an answer.
type Source struct {
	Doc     string `json:"doc"`
	Version string `json:"version"`
	Section string `json:"section"`
}

// Response is the decoded answer payload. Answer is a pointer so a missing
// field can be told apart from an empty one.
type Response struct {
	Answer  *string  `json:"answer"`
	Sources []Source `json:"sources,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}
