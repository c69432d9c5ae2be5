package model

// PayloadVersion is the only accepted submission schema version.
const PayloadVersion = "1.2.0"

// LeadPayload is a lead submission. Optional scalars are pointers so that a
// field sent as 0 or false is distinguishable from an omitted one.
type LeadPayload struct {
	Version       string         `json:"version" validate:"required,eq=1.2.0"`
	ID            *string        `json:"id,omitempty"`
	Contact       *Contact       `json:"contact" validate:"required"`
	Building      *Building      `json:"building,omitempty"`
	HeatingSystem *HeatingSystem `json:"heatingSystem,omitempty"`
	Project       *Project       `json:"project,omitempty"`
}

// ExternalID returns the caller-supplied id, or nil when absent or empty.
func (p *LeadPayload) ExternalID() *string {
	if p == nil || p.ID == nil || *p.ID == "" {
		return nil
	}
	return p.ID
}

type Contact struct {
	ContactInformation *ContactInformation `json:"contactInformation" validate:"required"`
	Address            *Address            `json:"address,omitempty"`
	Marketing          *Marketing          `json:"marketing,omitempty"`
}

type ContactInformation struct {
	Salutation            *string `json:"salutation,omitempty" validate:"omitempty,enum=salutation"`
	FirstName             string  `json:"firstName" validate:"required"`
	LastName              string  `json:"lastName" validate:"required"`
	Phone                 string  `json:"phone" validate:"required"`
	Email                 string  `json:"email" validate:"required,email"`
	Mobile                *string `json:"mobile,omitempty"`
	NewsletterSingleOptIn *bool   `json:"newsletterSingleOptIn,omitempty"`
}

type Address struct {
	Street      *string `json:"street,omitempty"`
	HouseNumber *string `json:"houseNumber,omitempty"`
	PostalCode  *string `json:"postalCode,omitempty"`
	City        *string `json:"city,omitempty"`
	CountryCode *string `json:"countryCode,omitempty"`
}

type Marketing struct {
	CustomerLoyaltyProgramType *string `json:"customerLoyaltyProgramType,omitempty"`
	CustomerLoyaltyProgramID   *string `json:"customerLoyaltyProgramId,omitempty"`
}

type Building struct {
	Address                   *Address                   `json:"address,omitempty"`
	BuildingInformation       *BuildingInformation       `json:"buildingInformation,omitempty"`
	OwnershipRelationships    *OwnershipRelationships    `json:"ownershipRelationships,omitempty"`
	EnergyRelevantInformation *EnergyRelevantInformation `json:"energyRelevantInformation,omitempty"`
	HotWater                  *HotWater                  `json:"hotWater,omitempty"`
}

type BuildingInformation struct {
	ImmoType                              *string  `json:"immoType,omitempty" validate:"omitempty,enum=immoType"`
	HeritageProtection                    *string  `json:"heritageProtection,omitempty" validate:"omitempty,enum=yesNo"`
	ConstructionYear                      *float64 `json:"constructionYear,omitempty"`
	LivingSpace                           *float64 `json:"livingSpace,omitempty"`
	ConstructionYearString                *string  `json:"constructionYearString,omitempty"`
	ResidentialUnits                      *float64 `json:"residentialUnits,omitempty"`
	BoilerRoomSize                        *string  `json:"boilerRoomSize,omitempty" validate:"omitempty,enum=boilerRoomSize"`
	InstallationLocationCeilingHeight     *string  `json:"installationLocationCeilingHeight,omitempty" validate:"omitempty,enum=ceilingHeight"`
	WidthPathway                          *string  `json:"widthPathway,omitempty" validate:"omitempty,enum=yesNo"`
	HeightPathway                         *string  `json:"heightPathway,omitempty" validate:"omitempty,enum=yesNo"`
	RoomsBetweenHeatingRoomAndOutdoorUnit *string  `json:"roomsBetweenHeatingRoomAndOutdoorUnit,omitempty" validate:"omitempty,enum=roomsBetween"`
	MeterClosetLocation                   *string  `json:"meterClosetLocation,omitempty" validate:"omitempty,enum=buildingLevel"`
	ElectricityConnectionLocation         *string  `json:"electricityConnectionLocation,omitempty" validate:"omitempty,enum=buildingLevel"`
	GroundingType                         *string  `json:"groundingType,omitempty" validate:"omitempty,enum=groundingType"`
	HasSolarThermalSystem                 *bool    `json:"hasSolarThermalSystem,omitempty"`
	PersonsHousehold                      *float64 `json:"personsHousehold,omitempty"`
}

type OwnershipRelationships struct {
	OwnershipRelationship            *string  `json:"ownershipRelationship,omitempty" validate:"omitempty,enum=ownershipRelationship"`
	OwnershipRelationshipExplanation *string  `json:"ownershipRelationshipExplanation,omitempty"`
	NumberOfOwners                   *float64 `json:"numberOfOwners,omitempty"`
	OwnerOccupiedHousing             *bool    `json:"ownerOccupiedHousing,omitempty"`
	Type                             *string  `json:"type,omitempty" validate:"omitempty,enum=ownershipType"`
}

type EnergyRelevantInformation struct {
	HeatedArea             *float64 `json:"heatedArea,omitempty"`
	HeatedAreaString       *string  `json:"heatedAreaString,omitempty"`
	TypeOfHeating          *string  `json:"typeOfHeating,omitempty" validate:"omitempty,enum=typeOfHeating"`
	LocationHeating        *string  `json:"locationHeating,omitempty" validate:"omitempty,enum=locationHeating"`
	ApartmentHeatingSystem *string  `json:"apartmentHeatingSystem,omitempty" validate:"omitempty,enum=apartmentHeatingSystem"`
}

type HotWater struct {
	NumberOfBathtubs *float64 `json:"numberOfBathtubs,omitempty"`
	NumberOfShowers  *float64 `json:"numberOfShowers,omitempty"`
	TypeOfShowers    *string  `json:"typeOfShowers,omitempty" validate:"omitempty,enum=showerType"`
}

type HeatingSystem struct {
	Consumption                         *float64 `json:"consumption,omitempty"`
	ConsumptionUnit                     *string  `json:"consumptionUnit,omitempty" validate:"omitempty,enum=consumptionUnit"`
	SystemType                          *string  `json:"systemType,omitempty" validate:"omitempty,enum=heatingSystemType"`
	ConstructionYearHeatingSystem       *float64 `json:"constructionYearHeatingSystem,omitempty" validate:"omitempty,min=1500"`
	ConstructionYearHeatingSystemString *string  `json:"constructionYearHeatingSystemString,omitempty"`
	Model                               *string  `json:"model,omitempty"`
	FloorHeatingConnectedToReturnPipe   *bool    `json:"floorHeatingConnectedToReturnPipe,omitempty"`
	FloorHeatingOwnHeatingCircuit       *bool    `json:"floorHeatingOwnHeatingCircuit,omitempty"`
	FloorHeatingOnlyInSmallRooms        *bool    `json:"floorHeatingOnlyInSmallRooms,omitempty"`
	NumberOfFloorHeatingDistributors    *float64 `json:"numberOfFloorHeatingDistributors,omitempty"`
	NumberOfRadiators                   *float64 `json:"numberOfRadiators,omitempty"`
	DomesticHotWaterByHeatpump          *bool    `json:"domesticHotWaterByHeatpump,omitempty"`
	DomesticHotWaterCirculationPump     *string  `json:"domesticHotWaterCirculationPump,omitempty" validate:"omitempty,enum=circulationPump"`
	DomesticWaterStation                *string  `json:"domestic_water_station,omitempty" validate:"omitempty,enum=waterStation"`
}

type Project struct {
	Timeline                              *string          `json:"timeline,omitempty" validate:"omitempty,enum=projectTimeline"`
	HouseholdIncome                       *string          `json:"householdIncome,omitempty" validate:"omitempty,enum=householdIncome"`
	StatusOfFoundationConstruction        *string          `json:"statusOfFoundationConstruction,omitempty" validate:"omitempty,enum=foundationConstruction"`
	InfosLeadsource                       *string          `json:"infosLeadsource,omitempty"`
	FullReplacementOfHeatingSystemPlanned *bool            `json:"fullReplacementOfHeatingSystemPlanned,omitempty"`
	AdditionalDisposal                    []string         `json:"additionalDisposal,omitempty" validate:"omitempty,dive,enum=additionalDisposal"` // nil when omitted, empty when sent as []
	ShouldKeepSolarThermalSystem          *bool            `json:"shouldKeepSolarThermalSystem,omitempty"`
	Pictures                              *ProjectPictures `json:"pictures,omitempty"`
}

type Picture struct {
	URL string `json:"url" validate:"required,url"`
}

type ProjectPictures struct {
	OutdoorUnitLocation                  []Picture `json:"outdoorUnitLocation,omitempty" validate:"omitempty,dive"`
	OutdoorUnitLocationWithArea          []Picture `json:"outdoorUnitLocationWithArea,omitempty" validate:"omitempty,dive"`
	HeatingRoom                          []Picture `json:"heatingRoom,omitempty" validate:"omitempty,dive"`
	MeterClosetWithDoorOpen              []Picture `json:"meterClosetWithDoorOpen,omitempty" validate:"omitempty,dive"`
	MeterClosetSlsSwitchDetailed         []Picture `json:"meterClosetSlsSwitchDetailed,omitempty" validate:"omitempty,dive"`
	FloorHeatingDistributionWithDoorOpen []Picture `json:"floorHeatingDistributionWithDoorOpen,omitempty" validate:"omitempty,dive"`
}
