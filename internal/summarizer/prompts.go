package summarizer

import "fmt"

const chunkSystemPrompt = `You are an experienced contract attorney reviewing a contract on behalf of your client.
You will receive one part of a longer contract. Summarize it faithfully and concisely.
Keep every party, obligation, deadline, amount, payment term, renewal or termination condition,
penalty, liability limit and unusual clause you find. Do not invent terms that are not in the text.
Write plain prose or short bullet points. Do not add an introduction or a conclusion.`

const condenseSystemPrompt = `You are an experienced contract attorney. You will receive part of a combined summary
of a long contract. Condense it while preserving every key point: parties, obligations, dates,
amounts, payment terms, termination conditions, penalties and risks. Remove repetition only.
Do not invent terms that are not in the text.`

const analysisSystemPrompt = `You are an experienced contract attorney. Analyze the contract summary you receive and respond
with a single JSON object with exactly this structure:
{
  "keyInsights": {"summary": "one or two sentences", "points": ["..."]},
  "potentialIssues": {"summary": "one or two sentences", "points": ["..."]},
  "recommendations": {"summary": "one or two sentences", "points": ["..."]},
  "financialTerms": {
    "propertyValue": "value or empty string",
    "paymentSchedule": "schedule or empty string",
    "additionalCosts": ["..."],
    "financialConditions": ["..."]
  }
}
keyInsights lists the most important terms a signer must understand. potentialIssues lists
ambiguous, one-sided, missing or risky clauses. recommendations lists concrete actions or
negotiation points. Every points array must contain strings only. Respond with JSON only.`

func chunkPrompt(docName string, index, total int, chunk string) string {
	return fmt.Sprintf("Contract: %s\nPart %d of %d.\n\n%s", displayName(docName), index+1, total, chunk)
}

func condensePrompt(index, total int, piece string) string {
	return fmt.Sprintf("Summary section %d of %d. Condense it and preserve the key points.\n\n%s", index+1, total, piece)
}

func analysisPrompt(docName, summary string) string {
	return fmt.Sprintf("Contract: %s\n\nSummary of the full contract:\n\n%s", displayName(docName), summary)
}

func displayName(name string) string {
	if name == "" {
		return "untitled contract"
	}
	return name
}
