package analysis

import "fmt"

// SystemPrompt is the instruction shared by every analysis backend.
const SystemPrompt = "You are an expert conversation analyst for customer support calls. " +
	"Return responses STRICTLY as a single JSON object following the provided schema. " +
	"Do not include any additional commentary or markdown."

// schemaTemplate is the JSON schema instruction appended to every user prompt.
// The key set here is the contract the Report type decodes against.
const schemaTemplate = `Return ONLY a JSON object with this exact structure and keys (no markdown, no extra text). If a field is not applicable, use an empty string for strings, [] for arrays, and null where allowed:

{
  "emotion_overall": "very_negative | negative | neutral | positive | very_positive",
  "emotion_confidence": 0.0,
  "satisfaction": "very_unsatisfied | unsatisfied | neutral | satisfied | very_satisfied",
  "satisfaction_confidence": 0.0,
  "summary": "2-4 concise sentences summarizing the conversation",
  "customer_intent": "primary customer intent in one sentence",
  "issues": ["list of key issues raised by the customer"],
  "action_items": [
    {
      "owner": "agent | customer | other",
      "item": "what needs to be done",
      "due": "YYYY-MM-DD or null"
    }
  ],
  "agent_speaker_label": "Speaker 1 | Speaker 2 | Speaker 3 | unknown",
  "agent_identification_confidence": 0.0,
  "agent_improvement_opportunities": [
    {
      "category": "empathy | discovery | clarity | solution_quality | ownership | pace | listening | policy_adherence | product_knowledge",
      "observation": "what the agent did/said",
      "evidence": "short direct quote",
      "recommended_change": "what to do better next time",
      "impact": "low | medium | high"
    }
  ],
  "post_call_recommendations": [
    "specific next steps the agent should take after the call (e.g., send recap email with X, create ticket Y, schedule follow-up by DATE, update CRM with Z, proactive checks)"
  ],
  "follow_up_message_draft": "1 short paragraph the agent can send as a follow-up now",
  "sentiment_analysis": "2-4 sentences of critical-thinking analysis on the transcription, citing brief evidence/quotes where useful"
}`

// BuildUserPrompt renders the full user prompt for one call: metadata header,
// transcript block, analysis goals, and the schema instruction.
func BuildUserPrompt(req Request) string {
	return fmt.Sprintf("Analyze the following diarized transcript from a call.\n\n"+
		"Filename: %s\n"+
		"Duration: %s\n\n"+
		"Transcript (with timestamps and speakers):\n%s\n\n"+
		"Perform the analysis with the following goals:\n"+
		"- Determine overall emotion and customer satisfaction with confidence scores.\n"+
		"- Summarize the conversation in 2-4 sentences.\n"+
		"- Identify customer intent and key issues.\n"+
		"- Extract concrete action items with owner and due date if present.\n"+
		"- THINK about which speaker is the agent; set 'agent_speaker_label' to the best guess and a confidence score.\n"+
		"- Provide 'agent_improvement_opportunities' that focus on what the agent could do better next time, with evidence quotes and impact.\n"+
		"- Provide 'post_call_recommendations' that specify what the agent should do after the call from this point on (follow-up, ticketing, documentation, proactive checks), and include a short 'follow_up_message_draft'.\n"+
		"- Provide a 'sentiment_analysis' section with critical-thinking insight on the transcription.\n\n"+
		"Output must STRICTLY match the JSON schema below. Do not include any text outside the JSON object.\n\n%s",
		req.Filename, req.Duration, req.Transcript, schemaTemplate)
}
