// Package search implements the similarity retrieval port with a bleve full text index.
//
// Every stored stat block is indexed as one document holding its entity type
// (keyword) and its flat text rendering (analyzed and stored). A search is
// always scoped to one type, so examples of one kind never leak into the
// prompt of another.
package search
