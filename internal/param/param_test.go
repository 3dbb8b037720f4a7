package param

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func TestDeclare(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		args    string
		check   func(t *testing.T, s Spec)
	}{
		{
			name: "float with range", keyword: "float", args: "2,0,20",
			check: func(t *testing.T, s Spec) {
				assert.Equal(t, KindFloat, s.Kind)
				assert.True(t, s.Default.Equal(Float(2)))
				assert.InDelta(t, 0.0, s.Min, 0)
				assert.InDelta(t, 20.0, s.Max, 0)
			},
		},
		{
			name: "int without range", keyword: "int", args: "7",
			check: func(t *testing.T, s Spec) {
				assert.True(t, s.Default.Equal(Int(7)))
			},
		},
		{
			name: "choice with default", keyword: "choice", args: `1,"Fast","Slow"`,
			check: func(t *testing.T, s Spec) {
				assert.Equal(t, []string{"Fast", "Slow"}, s.Choices)
				assert.Equal(t, 1, s.Default.Int())
			},
		},
		{
			name: "choice without default", keyword: "choice", args: `"Only"`,
			check: func(t *testing.T, s Spec) {
				assert.Equal(t, []string{"Only"}, s.Choices)
				assert.Equal(t, 0, s.Default.Int())
			},
		},
		{
			name: "rgba color", keyword: "color", args: "255, 128, 0, 64",
			check: func(t *testing.T, s Spec) {
				assert.Equal(t, []int{255, 128, 0, 64}, s.Default.Components())
				assert.Equal(t, 4, s.Arity())
			},
		},
		{
			name: "file", keyword: "file", args: `"/tmp/in.png"`,
			check: func(t *testing.T, s Spec) {
				assert.Equal(t, "/tmp/in.png", s.Default.String())
			},
		},
		{
			name: "multiline text", keyword: "text", args: `1,"hello, world"`,
			check: func(t *testing.T, s Spec) {
				assert.True(t, s.Multiline)
				assert.Equal(t, "hello, world", s.Default.String())
			},
		},
		{
			name: "bool", keyword: "bool", args: "true",
			check: func(t *testing.T, s Spec) {
				assert.True(t, s.Default.Bool())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Declare("P", tt.keyword, tt.args)
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestDeclare_Errors(t *testing.T) {
	tests := []struct {
		keyword string
		args    string
	}{
		{"float", "abc"},
		{"float", "1,2"},
		{"float", "30,0,20"},
		{"int", "1.5"},
		{"choice", "3,\"a\",\"b\""},
		{"color", "1,2"},
		{"color", "300,0,0"},
		{"bool", "maybe"},
		{"text", `"unterminated`},
	}

	for _, tt := range tests {
		t.Run(tt.keyword+"("+tt.args+")", func(t *testing.T) {
			_, err := Declare("P", tt.keyword, tt.args)
			require.ErrorIs(t, err, ErrInvalidDeclaration)
		})
	}

	_, err := Declare("P", "slider", "1")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestIsDecoration(t *testing.T) {
	assert.True(t, IsDecoration("separator"))
	assert.True(t, IsDecoration(" Note "))
	assert.False(t, IsDecoration("float"))
}

// ---------------------------------------------------------------------------
// Argument grammar
// ---------------------------------------------------------------------------

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"1", []string{"1"}},
		{"1, 2 ,3", []string{"1", "2", "3"}},
		{`"a,b",2`, []string{`"a,b"`, "2"}},
		{`"say \"hi\"",0`, []string{`"say \"hi\""`, "0"}},
		{"1,,2", []string{"1", "", "2"}},
		{`""`, []string{`""`}},
	}

	for _, tt := range tests {
		got, err := SplitArgs(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := SplitArgs(`"open`)
	require.ErrorIs(t, err, ErrSyntax)
}

func TestQuoteUnquote(t *testing.T) {
	for _, s := range []string{"", "plain", `C:\dir\file`, `a "quoted" word`, "comma, inside"} {
		q := Quote(s)
		got, err := Unquote(q)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := Unquote("bare")
	require.ErrorIs(t, err, ErrSyntax)
}

// ---------------------------------------------------------------------------
// Sets
// ---------------------------------------------------------------------------

func mustDeclare(t *testing.T, name, keyword, args string) Spec {
	t.Helper()

	s, err := Declare(name, keyword, args)
	require.NoError(t, err)

	return s
}

func allKinds(t *testing.T) []Spec {
	t.Helper()

	return []Spec{
		mustDeclare(t, "Sigma", "float", "2,0,20"),
		mustDeclare(t, "Iterations", "int", "3,1,10"),
		mustDeclare(t, "Mode", "choice", `"A","B","C"`),
		mustDeclare(t, "Tint", "color", "255,0,0"),
		mustDeclare(t, "Input", "file", ""),
		mustDeclare(t, "Output", "folder", ""),
		mustDeclare(t, "Label", "text", ""),
		mustDeclare(t, "Preview", "bool", "1"),
	}
}

func TestSet_FormatKnownText(t *testing.T) {
	specs := allKinds(t)
	set := NewSet(
		Float(5.0), Int(4), Choice(2), Color(1, 2, 3),
		File(`/tmp/a "b".png`), Folder("/out"), Text(""), Bool(false),
	)

	text, err := set.Format(specs)
	require.NoError(t, err)
	assert.Equal(t, `5,4,2,1,2,3,"/tmp/a \"b\".png","/out","",0`, text)
}

func TestSet_RoundTrip(t *testing.T) {
	specs := allKinds(t)

	sets := []Set{
		Defaults(specs),
		NewSet(Float(0.125), Int(10), Choice(0), Color(0, 255, 9), File("x,y"), Folder(`C:\tmp`), Text("multi\nline"), Bool(true)),
		NewSet(Float(19.5), Int(1), Choice(1), Color(255, 255, 255), File(""), Folder(""), Text(`"`), Bool(false)),
	}

	for _, set := range sets {
		text, err := set.Format(specs)
		require.NoError(t, err)

		back, err := ParseSet(specs, text)
		require.NoError(t, err, text)
		assert.True(t, set.Equal(back), "round trip of %q", text)
	}
}

func TestSet_CountMismatch(t *testing.T) {
	specs := allKinds(t)

	_, err := NewSet(Float(1)).Format(specs)
	require.ErrorIs(t, err, ErrCountMismatch)

	_, err = ParseSet(specs[:1], "1,2")
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestSet_InvalidValues(t *testing.T) {
	specs := []Spec{mustDeclare(t, "Sigma", "float", "2,0,20")}

	_, err := NewSet(Float(25)).Format(specs)
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewSet(Int(3)).Format(specs)
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestSet_WithDoesNotAlias(t *testing.T) {
	orig := NewSet(Float(1), Float(2))
	changed := orig.With(0, Float(9))

	assert.InDelta(t, 1.0, orig.At(0).Float(), 0)
	assert.InDelta(t, 9.0, changed.At(0).Float(), 0)
}

func TestParseValues(t *testing.T) {
	specs := allKinds(t)

	set, err := ParseValues(specs, []string{"5", "2", "1", "10,20,30", "/in.png", "/out dir", "hello, you", "0"})
	require.NoError(t, err)

	assert.True(t, set.At(0).Equal(Float(5)))
	assert.Equal(t, []int{10, 20, 30}, set.At(3).Components())
	assert.Equal(t, "/out dir", set.At(5).String())
	assert.Equal(t, "hello, you", set.At(6).String())

	_, err = ParseValues(specs, []string{"1"})
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestKindText(t *testing.T) {
	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("Color")))
	assert.Equal(t, KindColor, k)

	b, err := KindFolder.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "folder", string(b))
}

func TestSpec_DeclarationRoundTrip(t *testing.T) {
	for _, spec := range allKinds(t) {
		decl := spec.Declaration()

		open := strings.IndexByte(decl, '(')
		require.Positive(t, open, decl)

		back, err := Declare(spec.Name, decl[:open], decl[open+1:len(decl)-1])
		require.NoError(t, err, decl)
		assert.Equal(t, spec.Kind, back.Kind)
		assert.True(t, spec.Default.Equal(back.Default), decl)
		assert.Equal(t, spec.Choices, back.Choices)
		assert.InDelta(t, spec.Min, back.Min, 0)
		assert.InDelta(t, spec.Max, back.Max, 0)
	}
}
