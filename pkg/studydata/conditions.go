package studydata

import (
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// ConditionMap assigns every subject to a condition label, preserving the
// order in which subjects and conditions were first added.
type ConditionMap struct {
	subjects   []string
	conditions []string
	bySubject  map[string]string
}

// NewConditionMap creates an empty subject condition map.
func NewConditionMap() *ConditionMap {
	return &ConditionMap{bySubject: map[string]string{}}
}

// Add assigns a condition label to a subject. Re-adding a subject replaces
// its label.
func (c *ConditionMap) Add(subject, condition string) {
	if _, ok := c.bySubject[subject]; !ok {
		c.subjects = append(c.subjects, subject)
	}
	c.bySubject[subject] = condition
	for _, known := range c.conditions {
		if known == condition {
			return
		}
	}
	c.conditions = append(c.conditions, condition)
}

// Condition returns the label assigned to the subject.
func (c *ConditionMap) Condition(subject string) (string, bool) {
	condition, ok := c.bySubject[subject]
	return condition, ok
}

// Subjects returns all subjects in insertion order.
func (c *ConditionMap) Subjects() []string {
	return c.subjects
}

// Conditions returns the distinct condition labels in order of first
// appearance.
func (c *ConditionMap) Conditions() []string {
	return c.conditions
}

// Len returns the number of subjects in the map.
func (c *ConditionMap) Len() int {
	return len(c.subjects)
}

// AddConditions joins the subject condition map onto a per-subject result
// table as a new outermost "condition" index level. A subject present in
// the table but missing from the map is a validation error.
func AddConditions(t *Table, conditions *ConditionMap) (*Table, error) {
	if conditions == nil || conditions.Len() == 0 {
		return nil, validation.NewConfigurationError("adding conditions requires a subject condition map")
	}
	subjectLevel := -1
	for i, name := range t.indexNames {
		if name == LevelSubject {
			subjectLevel = i
		}
	}
	if subjectLevel == -1 {
		return nil, validation.NewConfigurationError(
			"table has no %q index level (levels: %v)", LevelSubject, t.indexNames)
	}

	out := NewTable(append([]string{LevelCondition}, t.indexNames...), t.columns)
	for i := range t.values {
		subject := t.index[i][subjectLevel]
		condition, ok := conditions.Condition(subject)
		if !ok {
			return nil, validation.NewValidationError("subject %q has no condition entry", subject)
		}
		row := append([]string{condition}, t.index[i]...)
		if err := out.AppendRow(row, t.values[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
