package teianalytics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	identifierSeparator = "."
	offsetOpen          = "["
	offsetClose         = "]"
)

var (
	// ErrInvalidFormat is returned for identifiers with 0 or more than 3 segments.
	ErrInvalidFormat = errors.New("invalid dimension identifier format")
	// ErrOffsetNotAllowed is returned when the dimension segment carries an offset.
	ErrOffsetNotAllowed = errors.New("offset is only allowed on program and program stage")
	// ErrInvalidOffset is returned when the bracketed offset is not a 32-bit integer.
	ErrInvalidOffset = errors.New("invalid offset")
)

// ParseError describes a dimension identifier that could not be parsed.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse dimension identifier %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StringUID is an unresolved uid as written by the client.
type StringUID string

func (u StringUID) String() string {
	return string(u)
}

// DimensionIdentifierType is the level of the analytics hierarchy an identifier addresses.
type DimensionIdentifierType int

const (
	DimensionIdentifierTypeTEI DimensionIdentifierType = iota
	DimensionIdentifierTypeEnrollment
	DimensionIdentifierTypeEvent
)

func (t DimensionIdentifierType) String() string {
	switch t {
	case DimensionIdentifierTypeTEI:
		return "TEI"
	case DimensionIdentifierTypeEnrollment:
		return "ENROLLMENT"
	case DimensionIdentifierTypeEvent:
		return "EVENT"
	}

	return "UNKNOWN"
}

// ElementWithOffset is a program or program stage reference with an optional
// nth-occurrence offset.
type ElementWithOffset[T any] struct {
	element   T
	present   bool
	offset    int
	hasOffset bool
}

// NewElement returns a present element without offset.
func NewElement[T any](element T) ElementWithOffset[T] {
	return ElementWithOffset[T]{element: element, present: true}
}

// NewElementWithOffset returns a present element with an explicit offset.
func NewElementWithOffset[T any](element T, offset int) ElementWithOffset[T] {
	return ElementWithOffset[T]{element: element, present: true, offset: offset, hasOffset: true}
}

// Element returns the element and whether it is present.
func (e ElementWithOffset[T]) Element() (T, bool) {
	return e.element, e.present
}

// IsPresent reports whether the element is set.
func (e ElementWithOffset[T]) IsPresent() bool {
	return e.present
}

// HasOffset reports whether an offset was given explicitly.
func (e ElementWithOffset[T]) HasOffset() bool {
	return e.present && e.hasOffset
}

// Offset returns the offset, 0 (the latest occurrence) when unset.
func (e ElementWithOffset[T]) Offset() int {
	if !e.HasOffset() {
		return 0
	}

	return e.offset
}

func (e ElementWithOffset[T]) render() string {
	if !e.present {
		return ""
	}

	s := fmt.Sprint(uidOf(e.element))
	if e.hasOffset {
		s += offsetOpen + strconv.Itoa(e.offset) + offsetClose
	}

	return s
}

// uidOf prints resolved metadata by uid rather than by its Go representation.
func uidOf(v any) any {
	if u, ok := v.(interface{ UID() string }); ok {
		return u.UID()
	}

	return v
}

// DimensionIdentifier is the full address of a dimension:
// program[offset].programStage[offset].dimension.
type DimensionIdentifier[D any] struct {
	Program      ElementWithOffset[string]
	ProgramStage ElementWithOffset[string]
	Dimension    D
	// GroupID ties together identifiers whose conditions are OR'ed.
	GroupID string
	// Alias is the column name the client asked for, Key when empty.
	Alias string
}

// NewDimensionIdentifier builds an identifier from its parts.
func NewDimensionIdentifier[D any](
	program, stage ElementWithOffset[string], dimension D, groupID string,
) *DimensionIdentifier[D] {
	return &DimensionIdentifier[D]{
		Program:      program,
		ProgramStage: stage,
		Dimension:    dimension,
		GroupID:      groupID,
	}
}

// WithDimension returns a copy of the identifier carrying another dimension value.
func WithDimension[D, E any](d *DimensionIdentifier[D], dimension E) *DimensionIdentifier[E] {
	return &DimensionIdentifier[E]{
		Program:      d.Program,
		ProgramStage: d.ProgramStage,
		Dimension:    dimension,
		GroupID:      d.GroupID,
		Alias:        d.Alias,
	}
}

// HasProgram reports whether a program segment is present.
func (d *DimensionIdentifier[D]) HasProgram() bool {
	return d.Program.IsPresent()
}

// HasProgramStage reports whether a program stage segment is present.
func (d *DimensionIdentifier[D]) HasProgramStage() bool {
	return d.ProgramStage.IsPresent()
}

// Type derives the hierarchy level from the present segments.
func (d *DimensionIdentifier[D]) Type() DimensionIdentifierType {
	switch {
	case d.HasProgram() && d.HasProgramStage():
		return DimensionIdentifierTypeEvent
	case d.HasProgram():
		return DimensionIdentifierTypeEnrollment
	}

	return DimensionIdentifierTypeTEI
}

// String renders program[offset].stage[offset].dimension, omitting absent parts.
func (d *DimensionIdentifier[D]) String() string {
	parts := make([]string, 0, 3)
	if p := d.Program.render(); p != "" {
		parts = append(parts, p)
	}
	if s := d.ProgramStage.render(); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, fmt.Sprint(uidOf(d.Dimension)))

	return strings.Join(parts, identifierSeparator)
}

// Key is the structural key of the identifier, equal to its rendering.
func (d *DimensionIdentifier[D]) Key() string {
	return d.String()
}

// ColumnAlias names the output column of the identifier.
func (d *DimensionIdentifier[D]) ColumnAlias() string {
	if d.Alias != "" {
		return d.Alias
	}

	return d.Key()
}

// ParseDimensionIdentifier parses program[offset].programStage[offset].dimension.
func ParseDimensionIdentifier(fullID string) (*DimensionIdentifier[StringUID], error) {
	if strings.TrimSpace(fullID) == "" {
		return nil, &ParseError{Input: fullID, Err: ErrInvalidFormat}
	}

	segments := strings.Split(fullID, identifierSeparator)
	if len(segments) > 3 {
		return nil, &ParseError{Input: fullID, Err: ErrInvalidFormat}
	}

	elements := make([]ElementWithOffset[string], 0, len(segments))
	for i, segment := range segments {
		if i == len(segments)-1 && strings.Contains(segment, offsetOpen) {
			return nil, &ParseError{Input: fullID, Err: ErrOffsetNotAllowed}
		}

		element, err := parseSegment(segment)
		if err != nil {
			return nil, &ParseError{Input: fullID, Err: err}
		}

		elements = append(elements, element)
	}

	dimension := StringUID(elements[len(elements)-1].element)

	switch len(elements) {
	case 1:
		return NewDimensionIdentifier(ElementWithOffset[string]{}, ElementWithOffset[string]{}, dimension, ""), nil
	case 2:
		return NewDimensionIdentifier(elements[0], ElementWithOffset[string]{}, dimension, ""), nil
	}

	return NewDimensionIdentifier(elements[0], elements[1], dimension, ""), nil
}

func parseSegment(segment string) (ElementWithOffset[string], error) {
	open := strings.Index(segment, offsetOpen)
	if open < 0 {
		if segment == "" || strings.Contains(segment, offsetClose) {
			return ElementWithOffset[string]{}, ErrInvalidFormat
		}

		return NewElement(segment), nil
	}

	if open == 0 || !strings.HasSuffix(segment, offsetClose) {
		return ElementWithOffset[string]{}, ErrInvalidFormat
	}

	uid := segment[:open]
	raw := segment[open+1 : len(segment)-1]
	if strings.ContainsAny(raw, offsetOpen+offsetClose) {
		return ElementWithOffset[string]{}, ErrInvalidFormat
	}

	// only the canonical form is accepted so that rendering gives back the input
	offset, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || strconv.FormatInt(offset, 10) != raw {
		return ElementWithOffset[string]{}, fmt.Errorf("%w: %q", ErrInvalidOffset, raw)
	}

	return NewElementWithOffset(uid, int(offset)), nil
}
