package session

// DefaultExamples are offered while the transcript is empty.
var DefaultExamples = []string{
	"Why did the SEC introduce climate-related disclosure requirements?",
	"What changed between the 2022 proposed rule and the 2024 final rule?",
	"Are companies required to disclose Scope 3 emissions?",
}
