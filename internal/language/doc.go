// Package language normalizes the language labels reported by analysis
// providers so the language facet and filter see one spelling per language.
//
// Providers answer with names ("English"), lower-case words ("english"),
// ISO 639 codes ("en", "eng", "ger"), or BCP 47 tags ("en-US"). Normalize
// maps all of these to the English display name.
package language
