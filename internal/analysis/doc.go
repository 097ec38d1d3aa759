// Package analysis derives a user's behavioral pattern from their recent
// activity history. The pattern drives which activity types are suggested
// and how confident the system is in each suggestion.
package analysis
