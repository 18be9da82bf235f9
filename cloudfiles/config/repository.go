package config

import (
	"sort"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
)

// layeredRepository reads from base first and falls back to file values.
// Writes only touch the file layer.
type layeredRepository struct {
	base   env.Repository
	values map[string]string
}

func newLayeredRepository(base env.Repository, values map[string]string) env.Repository {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &layeredRepository{base: base, values: copied}
}

func (r *layeredRepository) Get(key string) string {
	if v := r.base.Get(key); v != "" {
		return v
	}
	return r.values[key]
}

func (r *layeredRepository) Set(key, value string) error {
	r.values[key] = value
	return nil
}

func (r *layeredRepository) Unset(key string) error {
	delete(r.values, key)
	return nil
}

func (r *layeredRepository) List() []string {
	merged := map[string]string{}
	for k, v := range r.values {
		merged[k] = v
	}
	for _, kv := range r.base.List() {
		k, v, _ := strings.Cut(kv, "=")
		if v != "" {
			merged[k] = v
		}
	}

	list := make([]string, 0, len(merged))
	for k, v := range merged {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}
