// Package conversation holds the conversation state and the two pure
// policies of the orchestration core: speaker scheduling (uniform-random
// with a no-immediate-repeat rule) and context construction (a bounded,
// role-tagged window over the history).
package conversation
