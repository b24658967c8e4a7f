// Package analyze implements the analyze stage: each extracted document is
// summarized, tagged and assigned a language by an ordered chain of LLM
// providers. The first provider that answers wins; the model that produced
// the answer is recorded on the item.
package analyze
