package catalog

import (
	"context"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/examroutine/core/exam"
)

type (
	// Document is the YAML layout of a catalog file, keyed by school id.
	Document struct {
		Schools map[string]School `yaml:"schools"`
	}

	School struct {
		Classes              []exam.Class              `yaml:"classes"`
		Subjects             []exam.Subject            `yaml:"subjects"`
		AcademicYears        []exam.AcademicYear       `yaml:"academicYears"`
		AssessmentCategories []exam.AssessmentCategory `yaml:"assessmentCategories"`
		TeacherClasses       map[string][]string       `yaml:"teacherClasses"` // teacher id -> class names
	}
)

// FileCatalog serves reference data from a YAML document. Unknown schools have no data.
type FileCatalog struct {
	doc Document
}

var _ exam.Catalog = (*FileCatalog)(nil)

func LoadFile(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile()")
	}
	return Parse(data)
}

func Parse(data []byte) (*FileCatalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal()")
	}
	if doc.Schools == nil {
		doc.Schools = make(map[string]School)
	}
	return &FileCatalog{doc: doc}, nil
}

// Marshal renders the catalog back to YAML.
func (c *FileCatalog) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c.doc)
	return data, errors.Wrap(err, "yaml.Marshal()")
}

func (c *FileCatalog) Classes(_ context.Context, schoolID string) ([]exam.Class, error) {
	return c.doc.Schools[schoolID].Classes, nil
}

func (c *FileCatalog) Subjects(_ context.Context, schoolID string) ([]exam.Subject, error) {
	return c.doc.Schools[schoolID].Subjects, nil
}

func (c *FileCatalog) AcademicYears(_ context.Context, schoolID string) ([]exam.AcademicYear, error) {
	return c.doc.Schools[schoolID].AcademicYears, nil
}

func (c *FileCatalog) AssessmentCategories(_ context.Context, schoolID string) ([]exam.AssessmentCategory, error) {
	return c.doc.Schools[schoolID].AssessmentCategories, nil
}

func (c *FileCatalog) TeacherClasses(_ context.Context, schoolID, teacherID string) ([]string, error) {
	return c.doc.Schools[schoolID].TeacherClasses[teacherID], nil
}

// SchoolIDs lists the schools of the document, sorted.
func (c *FileCatalog) SchoolIDs() []string {
	ids := make([]string, 0, len(c.doc.Schools))
	for id := range c.doc.Schools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Teachers returns the class names assigned to each teacher of a school.
func (c *FileCatalog) Teachers(schoolID string) map[string][]string {
	return c.doc.Schools[schoolID].TeacherClasses
}
