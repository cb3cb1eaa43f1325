// Package agent executes one research run: it asks a planner which tools to
// call, runs them in that order, and returns the observed trace together
// with the report and a record of which outputs reached the report.
//
// Two modes exist. The llm mode plans and writes with an OpenAI-compatible
// chat model through langchaingo and researches with Tavily. The offline
// mode uses a deterministic planner and canned research data so the full
// learning loop runs without network access.
package agent
