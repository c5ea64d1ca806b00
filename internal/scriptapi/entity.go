package scriptapi

import (
	"context"
	"regexp"
	"strings"
)

// Member is a method or property found next to an entity reference.
type Member struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// EntityInfo collects what the API package says about one entity.
type EntityInfo struct {
	Name          string   `json:"name"`
	Documentation string   `json:"documentation,omitempty"`
	Examples      []string `json:"examples"`
	Methods       []Member `json:"methods"`
	Properties    []Member `json:"properties"`
}

// SearchEntity searches for name and sorts the hits into documentation,
// examples, methods and properties.
func (s *Searcher) SearchEntity(ctx context.Context, name string) (EntityInfo, error) {
	info := EntityInfo{Name: name, Examples: []string{}, Methods: []Member{}, Properties: []Member{}}
	if name == "" {
		return info, nil
	}

	hits, err := s.Search(ctx, name)
	if err != nil {
		return info, err
	}

	member := regexp.MustCompile(regexp.QuoteMeta(name) + `\.(\w+)`)
	lowerName := strings.ToLower(name)

	for _, h := range hits {
		code := h.Code
		lower := strings.ToLower(code)

		if strings.Contains(code, "class "+name) || strings.Contains(code, "function "+name) || strings.Contains(code, "const "+name) {
			info.Documentation = code
		}

		if strings.Contains(lower, "example") && strings.Contains(lower, lowerName) {
			info.Examples = append(info.Examples, code)
		}

		if !strings.Contains(code, name+".") && !strings.Contains(code, lowerName+".") {
			continue
		}
		m := member.FindStringSubmatch(code)
		if m == nil {
			continue
		}
		ref := name + "." + m[1]
		if strings.Contains(code, ref+"(") || strings.Contains(code, ref+" =") {
			info.Methods = append(info.Methods, Member{Name: m[1], Code: code})
		} else {
			info.Properties = append(info.Properties, Member{Name: m[1], Code: code})
		}
	}
	return info, nil
}
