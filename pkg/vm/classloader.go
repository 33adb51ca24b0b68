package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/daimatz/positivity/pkg/classfile"
)

// ErrClassNotFound is returned when no loader in the chain knows a class.
var ErrClassNotFound = errors.New("class not found")

// ClassLoader loads classes by internal name.
type ClassLoader interface {
	LoadClass(name string) (*Class, error)
}

// defineClass decodes and verifies b. An empty name accepts whatever
// name the bytes declare.
func defineClass(name string, b []byte, loader ClassLoader) (*Class, error) {
	cf, err := classfile.ParseBytes(b)
	if err != nil {
		return nil, &VerificationError{Class: name, Err: err}
	}
	declared, err := cf.ClassName()
	if err != nil {
		return nil, &VerificationError{Class: name, Err: fmt.Errorf("resolving this_class: %w", err)}
	}
	if name == "" {
		name = declared
	} else if declared != name {
		return nil, &VerificationError{Class: name, Err: fmt.Errorf("bytes declare class %s", declared)}
	}
	if err := Verify(cf); err != nil {
		return nil, &VerificationError{Class: name, Err: err}
	}
	return &Class{Name: name, File: cf, Loader: loader}, nil
}

// MemoryClassLoader defines classes from in-memory bytes. A name can be
// defined once; later definitions fail with ErrDuplicateClass and leave the
// first class in place. It is not safe for concurrent use.
type MemoryClassLoader struct {
	Parent  ClassLoader
	classes map[string]*Class
}

// NewMemoryClassLoader creates a loader delegating unknown names to parent,
// which may be nil.
func NewMemoryClassLoader(parent ClassLoader) *MemoryClassLoader {
	return &MemoryClassLoader{
		Parent:  parent,
		classes: make(map[string]*Class),
	}
}

// DefineClass decodes, verifies and registers b under name. Any rejection
// is a *VerificationError.
func (cl *MemoryClassLoader) DefineClass(name string, b []byte) (*Class, error) {
	if _, ok := cl.classes[name]; ok && name != "" {
		Logger().Debug("rejecting duplicate class definition", zap.String("class", name))
		return nil, &VerificationError{Class: name, Err: ErrDuplicateClass}
	}
	c, err := defineClass(name, b, cl)
	if err != nil {
		Logger().Debug("class rejected", zap.String("class", name), zap.Error(err))
		return nil, err
	}
	if _, ok := cl.classes[c.Name]; ok {
		return nil, &VerificationError{Class: c.Name, Err: ErrDuplicateClass}
	}
	cl.classes[c.Name] = c
	Logger().Debug("class defined",
		zap.String("class", c.Name),
		zap.Int("bytes", len(b)),
		zap.Int("methods", len(c.File.Methods)))
	return c, nil
}

func (cl *MemoryClassLoader) LoadClass(name string) (*Class, error) {
	if c, ok := cl.classes[name]; ok {
		return c, nil
	}
	if cl.Parent != nil {
		return cl.Parent.LoadClass(name)
	}
	return nil, fmt.Errorf("memory: %w: %s", ErrClassNotFound, name)
}

// UserClassLoader loads user classes from the classpath, delegating to the parent first.
type UserClassLoader struct {
	ClassPath string
	Parent    ClassLoader
	Cache     map[string]*Class
}

// NewUserClassLoader creates a new UserClassLoader. parent may be nil.
func NewUserClassLoader(classPath string, parent ClassLoader) *UserClassLoader {
	return &UserClassLoader{
		ClassPath: classPath,
		Parent:    parent,
		Cache:     make(map[string]*Class),
	}
}

func (cl *UserClassLoader) LoadClass(name string) (*Class, error) {
	if c, ok := cl.Cache[name]; ok {
		return c, nil
	}
	if cl.Parent != nil {
		if c, err := cl.Parent.LoadClass(name); err == nil {
			return c, nil
		}
	}
	path := filepath.Join(cl.ClassPath, name+".class")
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("user: %w: %s", ErrClassNotFound, name)
		}
		return nil, fmt.Errorf("user: reading %s: %w", path, err)
	}
	c, err := defineClass(name, b, cl)
	if err != nil {
		return nil, err
	}
	cl.Cache[name] = c
	Logger().Debug("class loaded from disk", zap.String("class", name), zap.String("path", path))
	return c, nil
}
