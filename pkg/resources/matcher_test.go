package resources

import (
	"reflect"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		pattern string
		want    map[string]string
	}{
		{
			"detail uri",
			"maas://machine/abc123/details",
			"maas://machine/{system_id}/details",
			map[string]string{"system_id": "abc123"},
		},
		{
			"multiple placeholders extracted independently",
			"maas://subnet/42/ip/10.0.0.5",
			"maas://subnet/{subnet_id}/ip/{address}",
			map[string]string{"subnet_id": "42", "address": "10.0.0.5"},
		},
		{
			"literal pattern matches with no params",
			"maas://machines/list",
			"maas://machines/list",
			map[string]string{},
		},
		{
			"query string ignored",
			"maas://machines/list?hostname=web1",
			"maas://machines/list",
			map[string]string{},
		},
		{
			"segment count mismatch",
			"maas://machine/abc123",
			"maas://machine/{system_id}/details",
			map[string]string{},
		},
		{
			"extra segment",
			"maas://machine/abc123/details/extra",
			"maas://machine/{system_id}/details",
			map[string]string{},
		},
		{
			"empty id segment fails closed",
			"maas://machine//details",
			"maas://machine/{system_id}/details",
			map[string]string{},
		},
		{
			"literal mismatch",
			"maas://machine/abc123/summary",
			"maas://machine/{system_id}/details",
			map[string]string{},
		},
		{
			"scheme mismatch",
			"http://machine/abc123/details",
			"maas://machine/{system_id}/details",
			map[string]string{},
		},
		{
			"missing scheme",
			"machine/abc123/details",
			"maas://machine/{system_id}/details",
			map[string]string{},
		},
		{
			"values are case preserved",
			"maas://tag/Web-Tier/machines",
			"maas://tag/{tag_name}/machines",
			map[string]string{"tag_name": "Web-Tier"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Match(tc.uri, tc.pattern)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Match(%q, %q) = %v, want %v", tc.uri, tc.pattern, got, tc.want)
			}
		})
	}
}

func TestMatchIsPure(t *testing.T) {
	uri := "maas://machine/abc123/details"
	pattern := "maas://machine/{system_id}/details"

	first := Match(uri, pattern)
	second := Match(uri, pattern)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated Match calls differ: %v vs %v", first, second)
	}
}
