package coordinator

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

func TestClassifySignRejectionDetectsDepositWording(t *testing.T) {
	err := classifySignRejection(errors.New("Smart contract panicked: deposit is too low for signature production"))
	assert.True(t, mpcerr.Is(err, mpcerr.FeeTooLow))
}

func TestClassifySignRejectionDefaultsToSignatureUnavailable(t *testing.T) {
	err := classifySignRejection(errors.New("some other contract panic"))
	assert.True(t, mpcerr.Is(err, mpcerr.SignatureUnavailable))
}
