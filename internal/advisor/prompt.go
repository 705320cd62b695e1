package advisor

import (
	"strings"

	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/retrieval"
)

const (
	// preamble carries the behavioral contract for every turn: knowledge
	// base first, a fixed sentence for material we do not have, a fixed
	// refusal for off-topic questions, links only for resource requests.
	preamble = `You are SkillSage, an AI Career Advisor.

Rules:
1. Answer ONLY using information from the KNOWLEDGE BASE section below. It is the source of truth.
2. If the Knowledge Base is empty or does not contain the answer, say: "I'm sorry, my internal database doesn't have information on that specific skill yet."
3. Do NOT use outside knowledge to make up skills or careers.
4. If the question is not about careers, skills, or learning, reply exactly: "I can only help with career and skill questions."
5. When asked for learning resources, reply with a short list of titled external links only, no prose.`

	// emptyKnowledge replaces the knowledge block when retrieval returns
	// nothing, so the model is told explicitly rather than left guessing.
	emptyKnowledge = "No specific data found in the Knowledge Base."

	// guestMessage is the terminal reply when the caller's user key
	// resolves to no profile.
	guestMessage = "I could not find your profile. Please log in again so I can personalize my advice."

	// apologyMessage is returned whenever the generative backend fails.
	apologyMessage = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."
)

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildPrompt assembles the grounding context in its fixed order: preamble,
// profile, knowledge, history, then the current question.
func buildPrompt(prof profile.UserProfile, chunks []retrieval.ContextChunk, history []Turn, query string) string {
	var b strings.Builder
	b.WriteString(preamble)

	b.WriteString("\n\n--- USER PROFILE ---\n")
	b.WriteString(formatProfile(prof))

	b.WriteString("\n\n--- KNOWLEDGE BASE (SOURCE OF TRUTH) ---\n")
	b.WriteString(formatKnowledge(chunks))

	if len(history) > 0 {
		b.WriteString("\n\n--- CONVERSATION HISTORY ---\n")
		b.WriteString(formatHistory(history))
	}

	b.WriteString("\n\n--- USER QUESTION ---\n")
	b.WriteString(query)
	return b.String()
}

func formatProfile(prof profile.UserProfile) string {
	name := prof.Name
	if name == "" {
		name = "User"
	}
	parts := []string{"Name: " + name}
	if len(prof.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(prof.Skills, ", "))
	}
	if len(prof.CurrentlyLearning) > 0 {
		parts = append(parts, "Currently learning: "+strings.Join(prof.CurrentlyLearning, ", "))
	}
	if len(prof.Goals) > 0 {
		parts = append(parts, "Career goals: "+strings.Join(prof.Goals, ", "))
	}
	if prof.Qualification != "" {
		parts = append(parts, "Qualification: "+prof.Qualification)
	}
	if prof.Location != "" {
		parts = append(parts, "Location: "+prof.Location)
	}
	return strings.Join(parts, ". ") + "."
}

func formatKnowledge(chunks []retrieval.ContextChunk) string {
	if len(chunks) == 0 {
		return emptyKnowledge
	}
	lines := make([]string, len(chunks))
	for i, c := range chunks {
		lines[i] = c.Text
	}
	return strings.Join(lines, "\n")
}

func formatHistory(history []Turn) string {
	lines := make([]string, 0, len(history))
	for _, t := range history {
		speaker := "User"
		if t.Role == "assistant" {
			speaker = "Advisor"
		}
		lines = append(lines, speaker+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
