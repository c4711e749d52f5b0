package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/store"
	"github.com/marcus/bam/internal/suggest"
)

// parseOnOff accepts on/off and anything strconv.ParseBool does
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "allow":
		return true, nil
	case "off", "no", "deny":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, usageErr("%q is not on or off", s)
	}
	return v, nil
}

// splitAssign splits "key=value"
func splitAssign(arg string) (key, value string, err error) {
	key, value, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", usageErr("expected key=value, got %q", arg)
	}
	return key, strings.TrimSpace(value), nil
}

// parseToggle parses "key=on"
func parseToggle(kind store.FieldKind, arg string) (store.Edit, error) {
	key, value, err := splitAssign(arg)
	if err != nil {
		return store.Edit{}, err
	}
	on, err := parseOnOff(value)
	if err != nil {
		return store.Edit{}, err
	}
	return store.Edit{Kind: kind, Key: key, On: on}, nil
}

// parseAccess parses "post=on" for a flat matrix or "post/editor=off" for a
// two-level one
func parseAccess(arg string) (store.Edit, error) {
	e, err := parseToggle(store.FieldAccess, arg)
	if err != nil {
		return e, err
	}
	if outer, inner, ok := strings.Cut(e.Key, "/"); ok {
		if outer == "" || inner == "" {
			return store.Edit{}, usageErr("bad access cell %q", e.Key)
		}
		e.Key, e.Inner = outer, inner
	}
	return e, nil
}

// parseEdit builds an edit for field from its remaining arguments:
// "category text", "style-default fill", "style-active fill=on".
func parseEdit(field string, args []string) (store.Edit, error) {
	kind, err := store.ParseFieldKind(field)
	if err != nil {
		return store.Edit{}, fmt.Errorf("%w%s", err, suggest.Hint(field, store.FieldNames()))
	}
	if len(args) != 1 {
		return store.Edit{}, usageErr("%s takes exactly one argument", field)
	}
	arg := args[0]
	switch kind {
	case store.FieldAccess:
		return parseAccess(arg)
	case store.FieldCategory:
		return store.Edit{Kind: kind, Value: arg}, nil
	case store.FieldStyleDefault, store.FieldVariationDefault:
		return store.Edit{Kind: kind, Key: arg}, nil
	default:
		return parseToggle(kind, arg)
	}
}

// splitList splits a comma separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// settingKeys are the keys accepted by "bam settings set"
var settingKeys = []string{
	"post_types", "user_groups", "access_by_post_type",
	"access_by_user_group", "default_access", "manage_patterns",
}

// applySetting returns a copy of s with key set from its text form
func applySetting(s models.Settings, key, value string) (models.Settings, error) {
	out := s.Clone()
	var flag *bool
	switch key {
	case "post_types":
		out.PostTypes = splitList(value)
		return out, nil
	case "user_groups":
		out.UserGroups = splitList(value)
		return out, nil
	case "access_by_post_type":
		flag = &out.AccessByPostType
	case "access_by_user_group":
		flag = &out.AccessByUserGroup
	case "default_access":
		flag = &out.DefaultAccess
	case "manage_patterns":
		flag = &out.ManagePatterns
	default:
		if hint := suggest.Hint(key, settingKeys); hint != "" {
			return s, usageErr("unknown setting %q%s", key, hint)
		}
		return s, usageErr("unknown setting %q (one of %s)", key, strings.Join(settingKeys, ", "))
	}
	v, err := parseOnOff(value)
	if err != nil {
		return s, err
	}
	*flag = v
	return out, nil
}
