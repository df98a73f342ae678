package stim_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestStim(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Stim Suite")
}
