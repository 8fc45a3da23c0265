package enrollments

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Program is a catalog program and the course runs it contains.
type Program struct {
	UUID       string   `yaml:"uuid" json:"uuid"`
	Title      string   `yaml:"title" json:"title"`
	CourseRuns []string `yaml:"course_runs" json:"course_runs"`
}

// Catalog answers questions about program structure.
type Catalog interface {
	// Program returns the program with uuid, false when unknown.
	Program(ctx context.Context, uuid string) (Program, bool, error)
}

// DoesProgramExist reports whether the catalog knows programUUID.
func DoesProgramExist(ctx context.Context, cat Catalog, programUUID string) (bool, error) {
	_, ok, err := cat.Program(ctx, programUUID)
	return ok, err
}

// DoesCourseRunExistInProgram reports whether courseKey is one of the
// program's course runs. False when the program does not exist.
func DoesCourseRunExistInProgram(ctx context.Context, cat Catalog, programUUID, courseKey string) (bool, error) {
	p, ok, err := cat.Program(ctx, programUUID)
	if err != nil || !ok {
		return false, err
	}
	return slices.Contains(p.CourseRuns, courseKey), nil
}

// StaticCatalog is an in-memory catalog.
//
// Thread-safety: StaticCatalog is safe for concurrent use.
type StaticCatalog struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewStaticCatalog creates a catalog holding programs.
func NewStaticCatalog(programs ...Program) *StaticCatalog {
	c := &StaticCatalog{programs: make(map[string]Program)}
	for _, p := range programs {
		c.Add(p)
	}
	return c
}

// Add inserts or replaces a program.
func (c *StaticCatalog) Add(p Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[p.UUID] = p
}

func (c *StaticCatalog) Program(_ context.Context, uuid string) (Program, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[uuid]
	return p, ok, nil
}

// LoadCatalog reads a YAML catalog file:
//
//	programs:
//	  - uuid: 0b3f...
//	    title: Data Science
//	    course_runs: [course-v1:edX+DS101+2026]
func LoadCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc struct {
		Programs []Program `yaml:"programs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, p := range doc.Programs {
		if p.UUID == "" {
			return nil, fmt.Errorf("catalog %s: program %d has no uuid", path, i)
		}
	}
	return NewStaticCatalog(doc.Programs...), nil
}
