package services

import (
	"fmt"
	"strings"

	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

const participantPersona = `
You are an expert facilitator helping a creative professional reflect on their AI usage
and upskilling needs. Work in short, clear messages, but be kind. Ask one question at a time.
Language: mirror the user's language; if unclear, default to English.

IMPORTANT: Keep the conversation focused and conclude after 6-8 exchanges total.

Before anything else, ask the two standard questions:
"Hi there! What is your name?"
And then the second
"What kind of creative work do you do (profession or hobby)?"

After collecting both, continue with a brief, focused dialogue (3-5 more exchanges) to map:
- Creative tasks they already use AI for (concrete examples)
- Creative tasks they would like to learn to use AI for in the next 6 months
- Perceived blockers (skills, tools, ethics, IP, organisational)

After 5-7 total exchanges, conclude with: "Thanks [name]! Here's your upskilling profile:"
followed by a compact bullet summary of their needs, then: "You're ready to connect with others for co-creation! The facilitator will form groups soon."
`

const groupChairPersona = `
You are a creative sparring partner guiding a fast concepting session (fail fast / lean prototyping).
Be encouraging, playful, and inspiring. Keep energy high and momentum fast.
Use short, motivating messages, propose concrete drafts, and celebrate progress.

Workflow:

Start by asking: "Based on your shared interests and possible synergies, what could you imagine creating together?"
Guide the group through:
Ask only one playful question at a time, and always build on their answers.
Keep the vibe collaborative, energetic, and imaginative until the concept feels ready.

Ideation: spark many raw, fun ideas
Choosing: help them quickly pick one
Refining: add purpose, audience, key features
Finalising: shape into a clear, exciting concept
`

const themesPersona = `
You turn multiple participant need-summaries into 5-10 shared themes for co-creation.
Output JSON with keys: themes:[{name, rationale, representative_quotes[]}]. Keep it concise.
`

const groupingPersona = `
You are forming 3-person groups for a creative co-creation sprint. Goals:
1. Topical alignment: similar creative interests/domains
2. Skill complementarity: mix of AI experience levels and creative backgrounds
3. Learning synergy: where participants can help each other

Analyze each participant's:
- Creative role/domain
- Current AI usage patterns
- Learning goals and blockers
- Personality indicators from conversation style

Form balanced groups where members can:
- Work on similar creative concepts
- Share different perspectives and skills
- Support each other's learning needs

Identify every participant by the Token shown with their profile. Use each token at most once.
Return JSON: {"groups":[{"name":"Group 1", "participants":["token1","token2","token3"], "rationale":"Brief explanation of why this combination works"}]}
`

const extractionPersona = "You are a data extraction assistant. Return only valid JSON."

const openingMessage = "Hi! Let's get started.\n1) Your name?\n2) What kind of creative work do you do (profession or hobby)?"

const closingDirective = "The participant has answered enough questions. Now conclude with 'Thanks [name]! Here's your upskilling profile:' followed by a bullet summary of their needs, then 'You're ready to connect with others for co-creation! The facilitator will form groups soon.'"

const conceptQuestion = "Which concept do you want to create now (e.g., short film script, song lyrics, software idea, event concept, game plot)?"

const fallbackRationale = "Simple grouping (AI analysis failed)"

// Completion settings per purpose.
var (
	dialogueOptions   = llm.Options{Temperature: 0.4, MaxOutputTokens: 700}
	extractionOptions = llm.Options{Temperature: 0.1, MaxOutputTokens: 200}
	themesOptions     = llm.Options{Temperature: 0.2, MaxOutputTokens: 800}
	groupingOptions   = llm.Options{Temperature: 0.3, MaxOutputTokens: 1500}
	groupChatOptions  = llm.Options{Temperature: 0.5, MaxOutputTokens: 900}
)

// renderContext turns a stored onboarding log into the messages sent to the
// model. Directives are appended as trailing system messages and are never
// written back to the log.
func renderContext(log []*types.ChatTurn, directives ...string) []llm.Message {
	messages := make([]llm.Message, 0, len(log)+len(directives))
	for _, turn := range log {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	for _, d := range directives {
		messages = append(messages, llm.Message{Role: types.RoleSystem, Content: d})
	}
	return messages
}

func transcriptText(log []*types.ChatTurn) string {
	lines := make([]string, 0, len(log))
	for _, turn := range log {
		lines = append(lines, turn.Role+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

func extractionPrompt(log []*types.ChatTurn) string {
	return fmt.Sprintf(`Analyze this conversation and extract any name or creative role mentioned by the user.

Conversation:
%s

Look for:
- User's name (first name, full name, etc.)
- Creative profession/role (photographer, musician, designer, etc.)

Return JSON with exactly these fields:
{"name": "extracted_name_or_null", "role": "extracted_role_or_null"}

Examples:
- User says "karen" → {"name": "karen", "role": null}
- User says "I'm a photographer" → {"name": null, "role": "photographer"}
- User says "John, I do music" → {"name": "John", "role": "music"}

If nothing clear is found, use null.`, transcriptText(log))
}

func finalExtractionPrompt(log []*types.ChatTurn, hasName, hasRole bool) string {
	return fmt.Sprintf(`Extract missing participant information from this conversation.

Current status:
- Name: %s
- Role: %s

Conversation:
%s

Return JSON with exactly these fields:
{"name": "extracted_name_or_null", "role": "extracted_role_or_null"}

Only extract what is currently missing. If already found, return null for that field.`,
		foundOrMissing(hasName), foundOrMissing(hasRole), transcriptText(log))
}

func foundOrMissing(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}

func groupOpening(rationale string) string {
	if strings.TrimSpace(rationale) == "" {
		return conceptQuestion
	}
	intro := fmt.Sprintf("Welcome to your co-creation group! Based on your profiles, you were grouped together because: %s\n\nThis alignment gives you unique synergy opportunities. Let's leverage these connections as we work together.", rationale)
	return intro + "\n\n" + conceptQuestion
}

func groupSystemPrompt(rationale string) string {
	if strings.TrimSpace(rationale) == "" {
		return groupChairPersona
	}
	return groupChairPersona + fmt.Sprintf("\n\nIMPORTANT CONTEXT: This group was formed because: %s\nLeverage these synergies and guide the team to build on their complementary strengths and shared interests.", rationale)
}

// rationaleBullets splits a rationale into at most three sentence fragments.
func rationaleBullets(rationale string) []string {
	bullets := []string{}
	if rationale == "" {
		return bullets
	}
	sentences := strings.Split(rationale, ". ")
	if len(sentences) > 3 {
		sentences = sentences[:3]
	}
	for _, s := range sentences {
		s = strings.TrimRight(strings.TrimSpace(s), ".")
		if s != "" {
			bullets = append(bullets, s)
		}
	}
	return bullets
}
