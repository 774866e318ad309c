package browser

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ecociel/autopublish/automation"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectors []byte

// Rule finds the element of one role. Empty fields are not checked.
type Rule struct {
	CSS          string `yaml:"css" json:"css"`
	Text         string `yaml:"text,omitempty" json:"text,omitempty"`
	Class        string `yaml:"class,omitempty" json:"class,omitempty"`
	ViewBox      string `yaml:"view_box,omitempty" json:"viewBox,omitempty"`
	PathContains string `yaml:"path_contains,omitempty" json:"pathContains,omitempty"`
}

type Selectors map[automation.Role]Rule

var requiredRoles = []automation.Role{
	automation.RolePromptInput,
	automation.RoleEditButton,
	automation.RoleSaveButton,
	automation.RolePostButton,
}

// LoadSelectors reads the rule table from path, or the built-in table when
// path is empty.
func LoadSelectors(path string) (Selectors, error) {
	data := defaultSelectors
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read selectors: %w", err)
		}
		data = b
	}
	return ParseSelectors(data)
}

func ParseSelectors(data []byte) (Selectors, error) {
	var sel Selectors
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("parse selectors: %w", err)
	}
	for _, role := range requiredRoles {
		rule, ok := sel[role]
		if !ok || rule.CSS == "" {
			return nil, fmt.Errorf("parse selectors: no css for role %s", role)
		}
	}
	return sel, nil
}

// roleAttr marks the element a rule matched so later actions can address
// it with a plain CSS selector.
const roleAttr = "data-autopublish-role"

func roleSelector(role automation.Role) string {
	return fmt.Sprintf(`[%s=%q]`, roleAttr, string(role))
}

// locateScript returns an expression that tags the first element matching
// the role's rule and evaluates to whether one was found.
func (s Selectors) locateScript(role automation.Role) (string, error) {
	rule, ok := s[role]
	if !ok {
		return "", fmt.Errorf("no selector for role %s", role)
	}
	r, err := json.Marshal(rule)
	if err != nil {
		return "", err
	}
	attr, _ := json.Marshal(roleAttr)
	name, _ := json.Marshal(string(role))
	return fmt.Sprintf(locateJS, r, attr, name), nil
}

const locateJS = `(function(rule, attr, role) {
  document.querySelectorAll('[' + attr + '="' + role + '"]').forEach(function(el) { el.removeAttribute(attr); });
  var match = Array.from(document.querySelectorAll(rule.css)).find(function(el) {
    if (rule.text && (el.textContent || '').trim() !== rule.text) return false;
    if (rule.class && !el.classList.contains(rule.class)) return false;
    var svg = el.querySelector('svg');
    if (rule.viewBox && (!svg || svg.getAttribute('viewBox') !== rule.viewBox)) return false;
    if (rule.pathContains) {
      var path = svg && svg.querySelector('path');
      var d = path && path.getAttribute('d');
      if (!d || d.indexOf(rule.pathContains) < 0) return false;
    }
    return true;
  });
  if (!match) return false;
  match.setAttribute(attr, role);
  return true;
})(%s, %s, %s)`
