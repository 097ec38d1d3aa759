// Package generation turns a user's behavioral pattern into a set of
// activity suggestions. The wording of each suggestion comes from an external
// text-generation service (Gemini) behind the TextGenerator interface, so the
// recommendation rules can be exercised without any network access.
package generation
