package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"authsentinel/internal/rawevent"
)

func mustParse(t *testing.T, js string) rawevent.Value {
	t.Helper()
	v, err := rawevent.Parse([]byte(js))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return v
}

func TestProfileResolveFieldAliasOrder(t *testing.T) {
	prof := &Profile{
		Fields: map[string][]string{
			"username": {"user", "username", "winlog.event_data.TargetUserName"},
		},
	}
	event := mustParse(t, `{"username": "alice"}`)

	res := prof.ResolveField(event, "username")
	assert.True(t, res.Found)
	assert.Equal(t, "alice", res.Value)
}

func TestProfileResolveFieldDotPath(t *testing.T) {
	prof := &Profile{
		Fields: map[string][]string{
			"username": {"user", "winlog.event_data.TargetUserName"},
		},
	}
	event := mustParse(t, `{"winlog": {"event_data": {"TargetUserName": "bob"}}}`)

	res := prof.ResolveField(event, "username")
	assert.True(t, res.Found)
	assert.Equal(t, "bob", res.Value)
}

func TestProfileResolveFieldMissing(t *testing.T) {
	prof := &Profile{Fields: map[string][]string{"username": {"user"}}}
	event := mustParse(t, `{}`)

	res := prof.ResolveField(event, "username")
	assert.False(t, res.Found)
}

func TestProfileTranslateResult(t *testing.T) {
	prof := &Profile{ResultMap: map[string]string{"fail": "failure", "ok": "success"}}

	assert.Equal(t, "failure", prof.TranslateResult("fail"))
	assert.Equal(t, "success", prof.TranslateResult("ok"))
	assert.Equal(t, "success", prof.TranslateResult("success"))
	assert.Equal(t, "failure", prof.TranslateResult("failure"))
	assert.Equal(t, "other", prof.TranslateResult("denied"))
}

func TestProfilesResolveFallsBackToDefault(t *testing.T) {
	p := &Profiles{byName: map[string]*Profile{
		DefaultProfileName: {Name: DefaultProfileName},
		"windows":          {Name: "windows"},
	}}

	assert.Equal(t, "windows", p.Resolve("windows").Name)
	assert.Equal(t, DefaultProfileName, p.Resolve("unknown-source").Name)
	assert.Equal(t, DefaultProfileName, p.Resolve("").Name)
}
