package main

import (
	"strconv"
	"strings"
)

type optionalInt struct {
	value int
	set   bool
}

func (o *optionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *optionalInt) String() string {
	if o == nil || !o.set {
		return ""
	}
	return strconv.Itoa(o.value)
}

func (o *optionalInt) ptr() *int {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

type optionalInt64 struct {
	value int64
	set   bool
}

func (o *optionalInt64) Set(s string) error {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *optionalInt64) String() string {
	if o == nil || !o.set {
		return ""
	}
	return strconv.FormatInt(o.value, 10)
}

type multiStringFlag struct {
	values []string
}

func (m *multiStringFlag) Set(s string) error {
	m.values = append(m.values, s)
	return nil
}

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(m.values, ",")
}
