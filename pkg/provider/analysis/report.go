package analysis

// Report is the structured result of analyzing one call. Field names and
// value vocabularies mirror the JSON schema the model is instructed to emit.
//
// Scalar fields are pointers so a field the model omitted stays absent in
// API responses instead of decaying to a zero value: consumers must be able
// to tell "model said neutral" from "model said nothing". Deprecated keys the
// model may still emit (per_turn, compliance_flags, escalation_risk,
// escalation_reason) have no struct field and are dropped during decoding.
type Report struct {
	// EmotionOverall is one of: very_negative, negative, neutral, positive,
	// very_positive.
	EmotionOverall *string `json:"emotion_overall,omitempty"`

	// EmotionConfidence is the model's confidence in EmotionOverall (0.0–1.0).
	EmotionConfidence *float64 `json:"emotion_confidence,omitempty"`

	// Satisfaction is one of: very_unsatisfied, unsatisfied, neutral,
	// satisfied, very_satisfied.
	Satisfaction *string `json:"satisfaction,omitempty"`

	// SatisfactionConfidence is the model's confidence in Satisfaction (0.0–1.0).
	SatisfactionConfidence *float64 `json:"satisfaction_confidence,omitempty"`

	// Summary is 2–4 sentences summarizing the conversation.
	Summary *string `json:"summary,omitempty"`

	// CustomerIntent is the primary customer intent in one sentence.
	CustomerIntent *string `json:"customer_intent,omitempty"`

	// Issues lists the key issues raised by the customer.
	Issues []string `json:"issues,omitempty"`

	// ActionItems lists concrete follow-ups extracted from the call.
	ActionItems []ActionItem `json:"action_items,omitempty"`

	// AgentSpeakerLabel is the display label of the speaker the model believes
	// is the agent (e.g., "Speaker 1"), or "unknown".
	AgentSpeakerLabel *string `json:"agent_speaker_label,omitempty"`

	// AgentIdentificationConfidence is the model's confidence in
	// AgentSpeakerLabel (0.0–1.0).
	AgentIdentificationConfidence *float64 `json:"agent_identification_confidence,omitempty"`

	// AgentImprovementOpportunities lists coaching observations for the agent.
	AgentImprovementOpportunities []ImprovementOpportunity `json:"agent_improvement_opportunities,omitempty"`

	// PostCallRecommendations lists specific next steps the agent should take
	// after the call (recap email, ticket, CRM update).
	PostCallRecommendations []string `json:"post_call_recommendations,omitempty"`

	// FollowUpMessageDraft is a short paragraph the agent can send as a
	// follow-up immediately.
	FollowUpMessageDraft *string `json:"follow_up_message_draft,omitempty"`

	// SentimentAnalysis is 2–4 sentences of free-form analyst commentary.
	SentimentAnalysis *string `json:"sentiment_analysis,omitempty"`
}

// ActionItem is one concrete follow-up extracted from the call.
type ActionItem struct {
	// Owner is one of: agent, customer, other.
	Owner string `json:"owner"`

	// Item describes what needs to be done.
	Item string `json:"item"`

	// Due is a YYYY-MM-DD date, or nil when no due date was mentioned.
	Due *string `json:"due"`
}

// ImprovementOpportunity is one coaching observation about the agent.
type ImprovementOpportunity struct {
	// Category is one of: empathy, discovery, clarity, solution_quality,
	// ownership, pace, listening, policy_adherence, product_knowledge.
	Category string `json:"category"`

	// Observation describes what the agent did or said.
	Observation string `json:"observation"`

	// Evidence is a short direct quote from the transcript.
	Evidence string `json:"evidence"`

	// RecommendedChange describes what to do better next time.
	RecommendedChange string `json:"recommended_change"`

	// Impact is one of: low, medium, high.
	Impact string `json:"impact"`
}
