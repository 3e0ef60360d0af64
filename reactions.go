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

package flowsheet

import (
	"github.com/procsim/flowsheet/algebra"
	"github.com/sirupsen/logrus"
)

// ReactionParameters is implemented by reaction packages.
type ReactionParameters interface {
	// RateReactions returns the rate-reaction index, or false if the
	// package does not declare one.
	RateReactions() ([]string, bool)

	// EquilibriumReactions returns the equilibrium-reaction index, or
	// false if the package does not declare one.
	EquilibriumReactions() ([]string, bool)

	// RateStoichiometry and EquilibriumStoichiometry return the
	// stoichiometric coefficient of component in phase for a reaction.
	// Products are positive.
	RateStoichiometry(reaction, phase, component string) float64
	EquilibriumStoichiometry(reaction, phase, component string) float64

	// NewReactionBlock creates a reaction block on b that evaluates
	// reaction properties at the conditions of state.
	NewReactionBlock(b *algebra.Block, state StateBlock, cfg ReactionBlockConfig) (ReactionBlock, error)
}

// ReactionBlockConfig holds the options passed to a reaction package when
// a reaction block is created.
type ReactionBlockConfig struct {
	Times []float64

	// HasEquilibrium is true if the block should include equilibrium
	// reaction constraints.
	HasEquilibrium bool

	// Args holds package-specific options.
	Args map[string]interface{}

	Log logrus.FieldLogger
}

// ReactionBlock is a time-indexed container of reaction properties.
type ReactionBlock interface {
	Block() *algebra.Block
	Config() ReactionBlockConfig

	// ReactionRateBasis is the basis of the reaction extents.
	ReactionRateBasis() FlowBasis

	// HeatOfReaction returns the molar heat of reaction, or false if
	// the package does not provide one for the reaction.
	HeatOfReaction(t float64, reaction string) (algebra.Expr, bool)
}
