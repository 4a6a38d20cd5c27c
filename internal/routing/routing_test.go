package routing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/scan-router/internal/domain"
)

const sampleRules = `# bins for the spring survey
^\d{2}-\d{3}-[A-Z]-.+$ = HOUSEHOLDS
^CARD\d+$=CARDS

^""$=NOQRS
`

func mustRules(t *testing.T, text string) []Rule {
	t.Helper()
	rules, err := ParseRules(strings.NewReader(text))
	require.NoError(t, err)
	return rules
}

func mustRouter(t *testing.T, rules []Rule) *Router {
	t.Helper()
	r, err := NewRouter(rules, DefaultOptions())
	require.NoError(t, err)
	return r
}

func TestParseRules(t *testing.T) {
	rules := mustRules(t, sampleRules)

	require.Len(t, rules, 3)
	assert.Equal(t, `^\d{2}-\d{3}-[A-Z]-.+$`, rules[0].Pattern)
	assert.Equal(t, "HOUSEHOLDS", rules[0].Folder)
	assert.Equal(t, "CARDS", rules[1].Folder)
	assert.Equal(t, "NOQRS", rules[2].Folder)
	assert.True(t, rules[2].Matches(""))
	assert.False(t, rules[2].Matches(`""`))
}

func TestParseRules_Errors(t *testing.T) {
	tests := map[string]string{
		"missing separator": "^CARD$ CARDS\n",
		"empty folder":      "^CARD$=  \n",
		"bad regexp":        "^(CARD=CARDS\n",
		"escaping folder":   "X.*=../../escaped\n",
		"parent folder":     "X.*=..\n",
		"nested escape":     "X.*=bins/../../escaped\n",
		"absolute folder":   "X.*=/var/escaped\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules(strings.NewReader(text))
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig), "got %v", err)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestNewRule_FolderStaysInsideOutput(t *testing.T) {
	for _, folder := range []string{"CARDS", "bins/CARDS", "bins/../CARDS", "..hidden"} {
		r, err := NewRule("X.*", folder)
		require.NoError(t, err, folder)
		assert.Equal(t, folder, r.Folder)
	}

	_, err := NewRouter(nil, Options{UnroutedFolder: "../UNROUTED"})
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
	_, err = NewRouter(nil, Options{NoCodeFolder: "/tmp/NOQRS"})
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	defaults, err := LoadRules("")
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, "NOQRS", defaults[0].Folder)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
}

func TestRule_MatchesWholePayload(t *testing.T) {
	rule, err := NewRule(`CARD\d`, "CARDS")
	require.NoError(t, err)

	assert.True(t, rule.Matches("CARD1"))
	assert.False(t, rule.Matches("XCARD1"))
	assert.False(t, rule.Matches("CARD12"))

	alt, err := NewRule(`A|B`, "AB")
	require.NoError(t, err)
	assert.True(t, alt.Matches("B"))
	assert.False(t, alt.Matches("AB"))
}

func TestRoute_FirstDeclaredRuleWins(t *testing.T) {
	page := domain.PageRef{Document: "batch1", Index: 1}
	first := "^CARD.*$=EARLY\n^CARD\\d+$=LATE\n"
	swapped := "^CARD\\d+$=LATE\n^CARD.*$=EARLY\n"

	got := mustRouter(t, mustRules(t, first)).Route(page, []string{"CARD1"})
	require.Len(t, got, 1)
	assert.Equal(t, "EARLY", got[0].Folder)

	got = mustRouter(t, mustRules(t, swapped)).Route(page, []string{"CARD1"})
	require.Len(t, got, 1)
	assert.Equal(t, "LATE", got[0].Folder)
}

func TestRoute_CompositeSubfolder(t *testing.T) {
	r := mustRouter(t, mustRules(t, sampleRules))
	page := domain.PageRef{Document: "batch1", Index: 2}

	got := r.Route(page, []string{"12-345-A-XYZ123", "CARD1"})

	require.Len(t, got, 2)
	assert.Equal(t, domain.RoutingDecision{
		Payload:   "12-345-A-XYZ123",
		Folder:    "HOUSEHOLDS",
		Subfolder: "12-345-A",
		FileName:  "12-345-A-XYZ123",
	}, got[0])
	assert.Equal(t, domain.RoutingDecision{
		Payload:  "CARD1",
		Folder:   "CARDS",
		FileName: "CARD1",
	}, got[1])
}

func TestSubfolder(t *testing.T) {
	r := mustRouter(t, nil)

	assert.Equal(t, "12-345-A", r.Subfolder("12-345-A-XYZ123"))
	assert.Equal(t, "", r.Subfolder("CARD1"))
	assert.Equal(t, "", r.Subfolder("12-345-AXYZ"))

	short, err := NewRouter(nil, Options{CompositePattern: `^X.*$`, SubfolderLength: 8})
	require.NoError(t, err)
	assert.Equal(t, "", short.Subfolder("XYZ"))
	assert.Equal(t, "XYZ12345", short.Subfolder("XYZ123456789"))
}

func TestRoute_NoPayload(t *testing.T) {
	r := mustRouter(t, mustRules(t, sampleRules))

	got := r.Route(domain.PageRef{Document: "batch1", Index: 3}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "NOQRS", got[0].Folder)
	assert.Equal(t, "batch1", got[0].Subfolder)
	assert.Equal(t, "3", got[0].FileName)
	assert.Empty(t, got[0].Payload)
	assert.Equal(t, filepath.Join("NOQRS", "batch1", "3.pdf"), got[0].RelativePath("pdf"))
}

func TestRoute_NoPayloadWithoutEmptyRule(t *testing.T) {
	r, err := NewRouter(mustRules(t, "^CARD\\d+$=CARDS\n"), Options{NoCodeFolder: "MISSING"})
	require.NoError(t, err)

	got := r.Route(domain.PageRef{Document: "d", Index: 7}, []string{})
	require.Len(t, got, 1)
	assert.Equal(t, "MISSING", got[0].Folder)
	assert.Equal(t, "7", got[0].FileName)
}

func TestRoute_UnroutedPayload(t *testing.T) {
	r := mustRouter(t, mustRules(t, sampleRules))

	got := r.Route(domain.PageRef{Document: "d", Index: 1}, []string{"mystery/code"})

	require.Len(t, got, 1)
	assert.True(t, got[0].Unrouted)
	assert.Equal(t, "UNROUTED", got[0].Folder)
	assert.Equal(t, "mystery_code", got[0].FileName)
	assert.Equal(t, "mystery/code", got[0].Payload)
}

func TestNewRouter_InvalidComposite(t *testing.T) {
	_, err := NewRouter(nil, Options{CompositePattern: "("})
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"CARD1":         "CARD1",
		"a/b\\c":        "a_b_c",
		`x:y*z?"<>|`:    "x_y_z_____",
		"  padded  ":    "padded",
		"":              "_",
		"..":            "_",
		"line\nbreak":   "line_break",
		"12-345-A-XYZ1": "12-345-A-XYZ1",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), "input %q", in)
	}
}
