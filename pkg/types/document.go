// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the values shared by the converter, the CLI and the
// HTTP service: conversion settings, page descriptions, journal records and
// the error kinds callers match with errors.Is.
package types

import "time"

// PageInfo describes one page of a PDF document as displayed: Width and
// Height already account for the page's /Rotate entry.
type PageInfo struct {
	// Number is the 1-based page number.
	Number int `json:"number" yaml:"number"`

	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`

	// Rotate is the page's /Rotate entry, normalized to [0, 360).
	Rotate int `json:"rotate" yaml:"rotate"`
}

// ConversionStatus indicates the outcome of converting one document.
type ConversionStatus string

const (
	ConversionNone    ConversionStatus = "none"
	ConversionDone    ConversionStatus = "converted"
	ConversionSkipped ConversionStatus = "skipped"
	ConversionFailed  ConversionStatus = "failed"
)

// ConversionRecord is one entry of the conversion journal.
type ConversionRecord struct {
	// ID is a sortable unique identifier (xid).
	ID string `json:"id" yaml:"id"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Source is the uploaded filename or input path.
	Source string `json:"source" yaml:"source"`

	// InputSHA256 is the hex digest of the input bytes.
	InputSHA256 string `json:"input_sha256" yaml:"input_sha256"`

	PagesIn  int `json:"pages_in" yaml:"pages_in"`
	PagesOut int `json:"pages_out" yaml:"pages_out"`

	Fit    FitMode `json:"fit" yaml:"fit"`
	Scale  float64 `json:"scale" yaml:"scale"`
	Layout Layout  `json:"layout" yaml:"layout"`

	Status ConversionStatus `json:"status" yaml:"status"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}
