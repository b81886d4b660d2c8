package consensus

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Contract evaluates the mint rules for one deployment. It holds only
// read-only parameters and is safe for concurrent use.
type Contract struct {
	params Params
	logger *zap.Logger
}

func NewContract(params Params, logger *zap.Logger) (*Contract, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "new contract")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Contract{
		params: params,
		logger: logger.With(zap.String("deployment", params.Name)),
	}, nil
}

func (c *Contract) Params() Params { return c.params }

// Satisfied reports whether tx satisfies app's rule given side-channel input
// x and witness w. Failure detail is logged, not returned.
func (c *Contract) Satisfied(app App, tx *Transaction, x Data, w Data) bool {
	err := c.Check(app, tx, x, w)
	if err == nil {
		return true
	}
	code, _ := CodeOf(err)
	if code == MINT_ERR_UNKNOWN_TAG {
		c.logger.Error("contract misconfigured", zap.Stringer("app", app), zap.Error(err))
	} else {
		c.logger.Info(
			"mint rejected",
			zap.Stringer("app", app),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
	return false
}

// Check is Satisfied with the failure returned as a *MintError.
func (c *Contract) Check(app App, tx *Transaction, x Data, w Data) error {
	_, err := c.Evaluate(app, tx, x, w)
	return err
}

// Evaluate is Check that also returns what a successful token mint derived.
// The result is nil for badge mints.
func (c *Contract) Evaluate(app App, tx *Transaction, x Data, w Data) (*TokenMint, error) {
	if !x.IsEmpty() {
		return nil, minterr(MINT_ERR_UNEXPECTED_SIDE_CHANNEL, "side-channel input must be empty")
	}
	if tx == nil {
		return nil, minterr(MINT_ERR_DECODE, "nil transaction")
	}
	switch app.Tag {
	case TagBadge:
		return nil, c.VerifyBadgeMint(app, tx)
	case TagToken:
		return c.EvaluateTokenMint(app, tx, w)
	default:
		return nil, minterrf(MINT_ERR_UNKNOWN_TAG, "no rule for tag %s", app.Tag)
	}
}
