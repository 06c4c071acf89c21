// Package censor holds the shared vocabulary of the moderation core: the
// ordered risk scale, verdicts and result envelopes, the Detector capability
// contract every backend satisfies, the typed error taxonomy, and the helpers
// (retry policy, text chunking and aggregation, image sniffing, rate-limited
// HTTP calls) that the backend packages build on.
//
// Backends live in sub-packages (aliyun, tencent, llm, local). The flow
// package composes them into the orchestrator that callers submit content to.
package censor
