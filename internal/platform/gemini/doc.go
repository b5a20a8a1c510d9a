// Package gemini provides an implementation of the translation.Translator
// interface backed by Google's Gemini API.
//
// The translator renders the shared translation prompt, asks the model for a
// JSON response, and maps API failures onto the translation package errors.
// Safety blocks and malformed responses are permanent; transport and server
// errors are retried with exponential backoff.
package gemini
