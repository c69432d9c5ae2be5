// Package funnel maps lead submissions to sales-funnel stages.
package funnel

import (
	"github.com/NonStopMan/vamo-heatos/internal/model"
)

// Classify returns the funnel stage for a submission. It is a two-tier AND
// gate: every discovery field must be present to reach discovery, and every
// selling condition must hold on top of that to reach selling.
func Classify(p *model.LeadPayload) model.Stage {
	if len(MissingDiscovery(p)) > 0 {
		return model.StageQualification
	}
	if len(MissingSelling(p)) > 0 {
		return model.StageDiscovery
	}
	return model.StageSelling
}

// MissingDiscovery lists the discovery fields absent from p.
// Numeric and boolean fields count as present at 0 and false; enum-like
// strings must be non-empty.
func MissingDiscovery(p *model.LeadPayload) []string {
	var (
		info      *model.BuildingInformation
		ownership *model.OwnershipRelationships
		heating   *model.HeatingSystem
		project   *model.Project
	)
	if p != nil {
		if p.Building != nil {
			info = p.Building.BuildingInformation
			ownership = p.Building.OwnershipRelationships
		}
		heating = p.HeatingSystem
		project = p.Project
	}

	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}

	check("building.buildingInformation.immoType", info != nil && nonEmpty(info.ImmoType))
	check("building.buildingInformation.livingSpace", info != nil && info.LivingSpace != nil)
	check("building.buildingInformation.residentialUnits", info != nil && info.ResidentialUnits != nil)
	check("building.buildingInformation.groundingType", info != nil && nonEmpty(info.GroundingType))
	check("building.buildingInformation.hasSolarThermalSystem", info != nil && info.HasSolarThermalSystem != nil)
	check("building.ownershipRelationships.ownerOccupiedHousing", ownership != nil && ownership.OwnerOccupiedHousing != nil)
	check("heatingSystem.systemType", heating != nil && nonEmpty(heating.SystemType))
	check("heatingSystem.consumption", heating != nil && heating.Consumption != nil)
	check("heatingSystem.consumptionUnit", heating != nil && nonEmpty(heating.ConsumptionUnit))
	check("project.timeline", project != nil && nonEmpty(project.Timeline))
	check("project.fullReplacementOfHeatingSystemPlanned", project != nil && project.FullReplacementOfHeatingSystemPlanned != nil)

	return missing
}

// MissingSelling lists the selling conditions p does not satisfy. It does not
// look at discovery fields.
func MissingSelling(p *model.LeadPayload) []string {
	var (
		project *model.Project
		info    *model.BuildingInformation
	)
	if p != nil {
		project = p.Project
		if p.Building != nil {
			info = p.Building.BuildingInformation
		}
	}

	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}

	check("project.householdIncome", project != nil && project.HouseholdIncome != nil)
	check("project.statusOfFoundationConstruction", project != nil && project.StatusOfFoundationConstruction != nil)
	check("project.additionalDisposal", project != nil && project.AdditionalDisposal != nil)

	keepDecided := project != nil && project.ShouldKeepSolarThermalSystem != nil
	noSolarThermal := info != nil && info.HasSolarThermalSystem != nil && !*info.HasSolarThermalSystem
	check("project.shouldKeepSolarThermalSystem", keepDecided || noSolarThermal)

	check("project.pictures.outdoorUnitLocation", project != nil && project.Pictures != nil &&
		len(project.Pictures.OutdoorUnitLocation) > 0)

	return missing
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
