// Package http exposes a Converter as a JSON API with server-sent stage events.
package http
