// Package generation writes answers to extracted questions with a language
// model.
//
// An Answerer works in one of two modes. Direct mode puts the beginning of
// the document into every prompt and asks for an answer scaled to the
// question's marks. Retrieval mode looks up the chunks nearest to each
// question in the client's collection and uses them as context.
//
// Questions are answered concurrently on a bounded worker pool. A failure
// for one question becomes a placeholder answer; the batch always yields
// exactly one answer per question, in input order.
package generation
