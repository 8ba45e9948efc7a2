// Package client is the consumer side of the calculation API. It posts a
// request, folds the outcome into a State and renders that state as markdown
// for the terminal.
package client
