package llm

import "strings"

// SummarySystemPrompt frames table and image summarization.
const SummarySystemPrompt = `You describe content extracted from a technical equipment manual so that it can be found by semantic search. Be factual and complete. Never invent values that are not present in the content.`

// ImageSummaryPrompt asks for a description of a single extracted image.
const ImageSummaryPrompt = `Describe this image from the equipment manual in detail. Name every visible component, label, button, indicator, symbol and any text shown. If it is a diagram or a screen, explain what it shows and how the parts relate. Respond with plain text only.`

const tablePrompt = `Summarize the following table from the equipment manual in plain text. State what the table is about, then describe every row, keeping all numeric values, units and limits exactly as written. Respond with plain text only.`

// BuildTablePrompt wraps table HTML in the table summarization instructions.
func BuildTablePrompt(tableHTML string) string {
	var sb strings.Builder
	sb.WriteString(tablePrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(tableHTML)
	return sb.String()
}

// AnswerPrompt is the grounding contract for answer generation: the answer
// must be derivable solely from the supplied context.
const AnswerPrompt = `You are an expert assistant for medical devices, specifically infusion pumps. Answer the user's question clearly and concisely, based exclusively on the context below. The context was extracted directly from the equipment manual. If the context does not contain the answer, say so instead of guessing.`

// BuildAnswerPrompt embeds the retrieved context and the verbatim question.
func BuildAnswerPrompt(contextText, question string) string {
	var sb strings.Builder
	sb.WriteString(AnswerPrompt)
	sb.WriteString("\n\n**CONTEXT EXTRACTED FROM THE MANUAL:**\n")
	sb.WriteString(contextText)
	sb.WriteString("\n\n**USER QUESTION:**\n")
	sb.WriteString(question)
	sb.WriteString("\n\n**YOUR ANSWER:**\n")
	return sb.String()
}

// Kind is the kind of content handed to a summarizer.
type Kind string

const (
	KindImage Kind = "image"
	KindTable Kind = "table"
)

func (k Kind) String() string {
	return string(k)
}

