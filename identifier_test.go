package teianalytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDimensionIdentifier(t *testing.T) {
	t.Parallel()

	tt := []struct {
		name        string
		input       string
		program     string
		programOff  *int
		stage       string
		stageOff    *int
		dimension   StringUID
		expectedTyp DimensionIdentifierType
	}{
		{
			name:        "dimension only",
			input:       "w75KJ2mc4zz",
			dimension:   "w75KJ2mc4zz",
			expectedTyp: DimensionIdentifierTypeTEI,
		},
		{
			name:        "program",
			input:       "IpHINAT79UW.enrollmentdate",
			program:     "IpHINAT79UW",
			dimension:   "enrollmentdate",
			expectedTyp: DimensionIdentifierTypeEnrollment,
		},
		{
			name:        "program with negative offset",
			input:       "IpHINAT79UW[-2].ou",
			program:     "IpHINAT79UW",
			programOff:  intPtr(-2),
			dimension:   "ou",
			expectedTyp: DimensionIdentifierTypeEnrollment,
		},
		{
			name:        "end to end",
			input:       "abcdef1234[1].ghijkl5678.DE_UID",
			program:     "abcdef1234",
			programOff:  intPtr(1),
			stage:       "ghijkl5678",
			dimension:   "DE_UID",
			expectedTyp: DimensionIdentifierTypeEvent,
		},
		{
			name:        "both offsets",
			input:       "abcdef1234[0].ghijkl5678[-1].DE_UID",
			program:     "abcdef1234",
			programOff:  intPtr(0),
			stage:       "ghijkl5678",
			stageOff:    intPtr(-1),
			dimension:   "DE_UID",
			expectedTyp: DimensionIdentifierTypeEvent,
		},
		{
			name:        "int32 bounds",
			input:       "abcdef1234[2147483647].ghijkl5678[-2147483648].DE_UID",
			program:     "abcdef1234",
			programOff:  intPtr(2147483647),
			stage:       "ghijkl5678",
			stageOff:    intPtr(-2147483648),
			dimension:   "DE_UID",
			expectedTyp: DimensionIdentifierTypeEvent,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, err := ParseDimensionIdentifier(tc.input)
			require.NoError(t, err)

			program, ok := id.Program.Element()
			require.Equal(t, tc.program != "", ok)
			require.Equal(t, tc.program, program)
			require.Equal(t, tc.programOff != nil, id.Program.HasOffset())
			if tc.programOff != nil {
				require.Equal(t, *tc.programOff, id.Program.Offset())
			}

			stage, ok := id.ProgramStage.Element()
			require.Equal(t, tc.stage != "", ok)
			require.Equal(t, tc.stage, stage)
			require.Equal(t, tc.stageOff != nil, id.ProgramStage.HasOffset())
			if tc.stageOff != nil {
				require.Equal(t, *tc.stageOff, id.ProgramStage.Offset())
			}

			require.Equal(t, tc.dimension, id.Dimension)
			require.Equal(t, tc.expectedTyp, id.Type())
			require.Equal(t, tc.input, id.String())
		})
	}
}

func TestParseDimensionIdentifier_Errors(t *testing.T) {
	t.Parallel()

	tt := []struct {
		name     string
		input    string
		expected error
	}{
		{name: "empty", input: "", expected: ErrInvalidFormat},
		{name: "too many segments", input: "a.b.c.d", expected: ErrInvalidFormat},
		{name: "empty segment", input: "a..c", expected: ErrInvalidFormat},
		{name: "offset on dimension", input: "a.b.c[1]", expected: ErrOffsetNotAllowed},
		{name: "offset on single segment", input: "c[1]", expected: ErrOffsetNotAllowed},
		{name: "not an integer", input: "a[x].c", expected: ErrInvalidOffset},
		{name: "non canonical integer", input: "a[+1].c", expected: ErrInvalidOffset},
		{name: "offset above int32", input: "a[2147483648].c", expected: ErrInvalidOffset},
		{name: "offset below int32", input: "a[-2147483649].c", expected: ErrInvalidOffset},
		{name: "wrapping offset", input: "a[4294967297].b.c", expected: ErrInvalidOffset},
		{name: "unclosed bracket", input: "a[1.c", expected: ErrInvalidFormat},
		{name: "missing uid", input: "[1].c", expected: ErrInvalidFormat},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, err := ParseDimensionIdentifier(tc.input)
			require.Nil(t, id)
			require.ErrorIs(t, err, tc.expected)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			require.Equal(t, tc.input, parseErr.Input)
		})
	}
}

func TestDimensionIdentifier_Type(t *testing.T) {
	t.Parallel()

	none := ElementWithOffset[string]{}
	tt := []struct {
		name     string
		program  ElementWithOffset[string]
		stage    ElementWithOffset[string]
		expected DimensionIdentifierType
	}{
		{name: "neither", program: none, stage: none, expected: DimensionIdentifierTypeTEI},
		{name: "program", program: NewElement("p"), stage: none, expected: DimensionIdentifierTypeEnrollment},
		{name: "program and stage", program: NewElement("p"), stage: NewElement("s"), expected: DimensionIdentifierTypeEvent},
		{name: "stage only", program: none, stage: NewElement("s"), expected: DimensionIdentifierTypeTEI},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id := NewDimensionIdentifier(tc.program, tc.stage, StringUID("d"), "")
			require.Equal(t, tc.expected, id.Type())
		})
	}
}

func TestDimensionIdentifier_RenderParsed(t *testing.T) {
	t.Parallel()

	ids := []*DimensionIdentifier[StringUID]{
		NewDimensionIdentifier(ElementWithOffset[string]{}, ElementWithOffset[string]{}, StringUID("d"), ""),
		NewDimensionIdentifier(NewElementWithOffset("p", -3), ElementWithOffset[string]{}, StringUID("d"), ""),
		NewDimensionIdentifier(NewElement("p"), NewElementWithOffset("s", 2), StringUID("d"), ""),
	}

	for _, id := range ids {
		parsed, err := ParseDimensionIdentifier(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
}

func TestWithDimension(t *testing.T) {
	t.Parallel()

	id, err := ParseDimensionIdentifier("IpHINAT79UW[2].enrollmentdate")
	require.NoError(t, err)
	id.GroupID = "g1"

	param, err := NewDimensionParam(StaticEnrollmentDate, DimensionParamTypeHeader, IDSchemeUID, nil)
	require.NoError(t, err)

	d := WithDimension(id, param)
	require.Equal(t, "IpHINAT79UW[2].enrollmentdate", d.String())
	require.Equal(t, "g1", d.GroupID)
	require.Equal(t, DimensionIdentifierTypeEnrollment, d.Type())
}

func intPtr(v int) *int {
	return &v
}
