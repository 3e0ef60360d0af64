/*
Copyright © 2019 the Flowsheet authors.
This file is part of Flowsheet.

Flowsheet is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Flowsheet is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Flowsheet.  If not, see <http://www.gnu.org/licenses/>.
*/

package unitmodels

import (
	"context"

	"github.com/procsim/flowsheet"
	"github.com/procsim/flowsheet/algebra"
	"github.com/procsim/flowsheet/solver"
	"github.com/sirupsen/logrus"
)

// BoundaryConfig holds the options of a Feed or Product.
type BoundaryConfig struct {
	Name string

	PropertyPackage     flowsheet.PropertyParameters
	PropertyPackageArgs map[string]interface{}

	Log logrus.FieldLogger
}

// boundary is a unit with a single state block that represents a
// stream entering or leaving the flowsheet.
type boundary struct {
	Block      *algebra.Block
	Properties flowsheet.StateBlock
	Log        logrus.FieldLogger
}

func newBoundary(fs *flowsheet.Flowsheet, cfg BoundaryConfig, name string) (*boundary, error) {
	if cfg.Name == "" {
		cfg.Name = name
	}
	if cfg.PropertyPackage == nil {
		return nil, unitError(flowsheet.ErrConfiguration, fs.Model.FullName()+"."+cfg.Name,
			"a property package is required")
	}
	if cfg.Log == nil {
		cfg.Log = fs.Log
	}
	blk, err := fs.Model.AddBlock(cfg.Name)
	if err != nil {
		return nil, unitError(flowsheet.ErrConfiguration, fs.Model.FullName()+"."+cfg.Name, "%v", err)
	}
	log := cfg.Log.WithField("unit", blk.FullName())
	sb, err := blk.AddBlock("properties")
	if err != nil {
		return nil, unitError(flowsheet.ErrConfiguration, blk.FullName(), "%v", err)
	}
	props, err := cfg.PropertyPackage.NewStateBlock(sb, flowsheet.StateBlockConfig{
		Times:        fs.Time,
		DefinedState: true,
		Args:         cfg.PropertyPackageArgs,
		Log:          log,
	})
	if err != nil {
		return nil, err
	}
	return &boundary{Block: blk, Properties: props, Log: log}, nil
}

// Name implements flowsheet.Unit.
func (b *boundary) Name() string { return b.Block.FullName() }

// Initialize fixes the state variables that are not already fixed,
// solves the state block and releases the variables it fixed.
func (b *boundary) Initialize(ctx context.Context, o flowsheet.InitializeOptions) error {
	flags, err := flowsheet.FixState(b.Properties, o.StateArgs)
	if err != nil {
		return err
	}
	defer flags.Release()
	s := o.Solver
	if s == nil {
		s = &solver.Newton{Verbosity: o.OutputLevel, Log: b.Log}
	}
	r, err := s.Solve(ctx, b.Block)
	if err != nil {
		return err
	}
	if r.Status != solver.Optimal {
		b.Log.WithField("status", r.Status).Warn("solve did not converge")
	} else if o.OutputLevel > 0 {
		b.Log.Info("initialization complete")
	}
	return nil
}

// ModelCheck runs the model check of the state block.
func (b *boundary) ModelCheck(log logrus.FieldLogger) {
	if mc, ok := b.Properties.(flowsheet.ModelChecker); ok {
		mc.ModelCheck(log.WithField("unit", b.Name()))
	}
}

// Product is a stream leaving the flowsheet.
type Product struct {
	*boundary
	Inlet *flowsheet.Port
}

// NewProduct adds a product to fs. The default name is "product".
func NewProduct(fs *flowsheet.Flowsheet, cfg BoundaryConfig) (*Product, error) {
	b, err := newBoundary(fs, cfg, "product")
	if err != nil {
		return nil, err
	}
	p := &Product{boundary: b, Inlet: flowsheet.NewPort("inlet", b.Properties)}
	fs.AddUnit(p)
	return p, nil
}

// Feed is a stream entering the flowsheet. Its conditions are usually
// set by fixing the outlet port.
type Feed struct {
	*boundary
	Outlet *flowsheet.Port
}

// NewFeed adds a feed to fs. The default name is "feed".
func NewFeed(fs *flowsheet.Flowsheet, cfg BoundaryConfig) (*Feed, error) {
	b, err := newBoundary(fs, cfg, "feed")
	if err != nil {
		return nil, err
	}
	f := &Feed{boundary: b, Outlet: flowsheet.NewPort("outlet", b.Properties)}
	fs.AddUnit(f)
	return f, nil
}
