package router

// Intent classifies what a task is asking for. The routing engine uses it to
// match provider specialties and size output estimates.
type Intent string

const (
	// Code tasks
	IntentCodeImplementation Intent = "code_implementation"
	IntentCodeReview         Intent = "code_review"
	IntentCodeDebugging      Intent = "code_debugging"
	IntentCodeDocumentation  Intent = "code_documentation"

	// Analysis tasks
	IntentResearch  Intent = "research"
	IntentAnalysis  Intent = "analysis"
	IntentSynthesis Intent = "synthesis"

	// Writing tasks
	IntentDocumentation    Intent = "documentation"
	IntentCreativeWriting  Intent = "creative_writing"
	IntentTechnicalWriting Intent = "technical_writing"

	// Reasoning tasks
	IntentProblemSolving  Intent = "problem_solving"
	IntentPlanning        Intent = "planning"
	IntentDecisionSupport Intent = "decision_support"

	// Multi-modal
	IntentImageGeneration Intent = "image_generation"
	IntentVisionAnalysis  Intent = "vision_analysis"

	// Utility
	IntentQuestionAnswering Intent = "question_answering"
	IntentSummarization     Intent = "summarization"
	IntentTranslation       Intent = "translation"

	IntentUnknown Intent = "unknown"
)

// intentOrder fixes the iteration order for classification so ties resolve
// deterministically.
var intentOrder = []Intent{
	IntentCodeImplementation,
	IntentCodeReview,
	IntentCodeDebugging,
	IntentCodeDocumentation,
	IntentResearch,
	IntentAnalysis,
	IntentSynthesis,
	IntentDocumentation,
	IntentCreativeWriting,
	IntentTechnicalWriting,
	IntentProblemSolving,
	IntentPlanning,
	IntentDecisionSupport,
	IntentImageGeneration,
	IntentVisionAnalysis,
	IntentQuestionAnswering,
	IntentSummarization,
	IntentTranslation,
}

// intentKeywords drives the rule-based classifier. Each keyword matches on a
// word boundary, case-insensitively.
var intentKeywords = map[Intent][]string{
	IntentCodeImplementation: {
		"implement", "write code", "create function", "build",
		"develop", "code", "script", "program",
	},
	IntentCodeReview: {
		"review code", "code review", "refactor", "improve code",
		"optimize", "clean up code",
	},
	IntentCodeDebugging: {
		"debug", "fix bug", "error", "exception", "traceback",
		"not working", "broken", "fails",
	},
	IntentCodeDocumentation: {
		"document code", "add docstring", "code comments",
		"api documentation", "inline docs",
	},
	IntentResearch: {
		"research", "investigate", "study", "analyze",
		"deep dive", "explore", "survey",
	},
	IntentAnalysis: {
		"analyze", "examine", "assess", "evaluate",
		"compare", "contrast", "break down",
	},
	IntentSynthesis: {
		"synthesize", "combine", "integrate", "unify",
		"merge insights", "holistic view",
	},
	IntentDocumentation: {
		"document", "write docs", "readme", "guide",
		"manual", "specification", "technical writing",
	},
	IntentCreativeWriting: {
		"write story", "creative", "fiction", "poem",
		"narrative", "blog post", "article",
	},
	IntentTechnicalWriting: {
		"technical writing", "whitepaper", "spec",
		"design doc", "architecture document",
	},
	IntentProblemSolving: {
		"solve", "solution", "approach", "strategy",
		"how to", "what's the best way",
	},
	IntentPlanning: {
		"plan", "roadmap", "schedule", "timeline",
		"milestone", "project plan", "sprint",
	},
	IntentDecisionSupport: {
		"decide", "choose", "select", "recommend",
		"which is better", "tradeoff", "option",
	},
	IntentImageGeneration: {
		"generate image", "create image", "draw",
		"image of", "picture", "illustration",
	},
	IntentVisionAnalysis: {
		"describe image", "analyze image", "what's in",
		"image analysis", "visual", "screenshot",
	},
	IntentQuestionAnswering: {
		"what is", "how does", "why is", "explain",
		"what are", "how do", "question",
	},
	IntentSummarization: {
		"summarize", "tl;dr", "summary", "condense",
		"key points", "main ideas",
	},
	IntentTranslation: {
		"translate", "in spanish", "in french", "in german",
		"in chinese", "convert to",
	},
}

// outputMultipliers size the expected output relative to the input for token
// estimation. Intents not listed use 2.0.
var outputMultipliers = map[Intent]float64{
	IntentCodeImplementation: 3.0,
	IntentResearch:           4.0,
	IntentDocumentation:      3.0,
	IntentSummarization:      0.5,
	IntentQuestionAnswering:  1.0,
}

// intentSpecialty maps an intent to the provider specialty that earns a
// quality bonus when present.
var intentSpecialty = map[Intent]string{
	IntentCodeImplementation: "code",
	IntentCodeReview:         "code",
	IntentResearch:           "reasoning",
	IntentAnalysis:           "reasoning",
	IntentDocumentation:      "documentation",
}

// String returns the wire form of the intent.
func (i Intent) String() string { return string(i) }
