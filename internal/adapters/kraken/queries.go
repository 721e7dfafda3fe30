package kraken

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/octoflex/internal/domain"
)

const loginMutation = `mutation krakenTokenAuthentication($email: String!, $password: String!) {
  obtainKrakenToken(input: { email: $email, password: $password }) {
    token
    payload
  }
}`

const accountsQuery = `query viewerAccounts {
  viewer {
    accounts {
      number
      ledgers {
        balance
        ledgerType
      }
    }
  }
}`

const agreementFields = `agreements {
          product {
            code
            description
            fullName
            isTimeOfUse
          }
          unitRateGrossRateInformation {
            grossRate
          }
          unitRateInformation {
            ... on SimpleProductUnitRateInformation {
              __typename
              grossRateInformation {
                date
                grossRate
                rateValidToDate
                vatRate
              }
              latestGrossUnitRateCentsPerKwh
              netUnitRateCentsPerKwh
            }
            ... on TimeOfUseProductUnitRateInformation {
              __typename
              rates {
                grossRateInformation {
                  date
                  grossRate
                  rateValidToDate
                  vatRate
                }
                latestGrossUnitRateCentsPerKwh
                netUnitRateCentsPerKwh
                timeslotActivationRules {
                  activeFromTime
                  activeToTime
                }
                timeslotName
              }
            }
          }
          validFrom
          validTo
        }`

const maloFields = agreementFields + `
        maloNumber
        meloNumber
        meter {
          id
          meterType
          number
          shouldReceiveSmartMeterData
          submitMeterReadingUrl
        }
        referenceConsumption`

var comprehensiveQuery = `query ComprehensiveDataQuery($accountNumber: String!) {
  account(accountNumber: $accountNumber) {
    id
    ledgers {
      balance
      ledgerType
    }
    allProperties {
      id
      electricityMalos {
        ` + maloFields + `
      }
      gasMalos {
        ` + maloFields + `
      }
    }
  }
  completedDispatches(accountNumber: $accountNumber) {
    delta
    deltaKwh
    end
    endDt
    meta {
      location
      source
    }
    start
    startDt
  }
  devices(accountNumber: $accountNumber) {
    status {
      current
      currentState
      isSuspended
    }
    provider
    preferences {
      mode
      schedules {
        dayOfWeek
        max
        min
        time
      }
      targetType
      unit
      gridExport
    }
    preferenceSetting {
      deviceType
      id
      mode
      scheduleSettings {
        id
        max
        min
        step
        timeFrom
        timeStep
        timeTo
      }
      unit
    }
    name
    integrationDeviceId
    id
    deviceType
    alerts {
      message
      publishedAt
    }
    ... on SmartFlexVehicle {
      vehicleVariant {
        model
        batterySize
      }
    }
  }
}`

const electricityReadingsQuery = `query ElectricityMeterReadings($accountNumber: String!, $meterId: ID!) {
  electricityMeterReadings(accountNumber: $accountNumber, meterId: $meterId, first: 1) {
    edges {
      node {
        value
        readAt
        registerObisCode
        registerType
        typeOfRead
        origin
        meterId
      }
    }
  }
}`

const gasReadingsQuery = `query GasMeterReadings($accountNumber: String!, $meterId: ID!) {
  gasMeterReadings(accountNumber: $accountNumber, meterId: $meterId, first: 1) {
    edges {
      node {
        value
        readAt
        registerObisCode
        typeOfRead
        origin
        meterId
      }
    }
  }
}`

const smartControlMutation = `mutation ChangeDeviceSuspension($deviceId: ID = "", $action: SmartControlAction!) {
  updateDeviceSmartControl(input: { deviceId: $deviceId, action: $action }) {
    id
  }
}`

const boostChargeMutation = `mutation triggerBoostCharge($input: UpdateBoostChargeInput!) {
  updateBoostCharge(input: $input) {
    id
  }
}`

var weekdays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// plannedDispatchesQuery inlines the device id; the upstream schema rejects it as a variable.
func plannedDispatchesQuery(deviceID string) (string, error) {
	quoted, err := json.Marshal(deviceID)
	if err != nil {
		return "", fmt.Errorf("quote device id: %w", err)
	}

	return `query flexPlannedDispatches {
  flexPlannedDispatches(deviceId: ` + string(quoted) + `) {
    end
    energyAddedKwh
    start
    type
  }
}`, nil
}

// devicePreferencesMutation applies the same target to every day of the week.
func devicePreferencesMutation(deviceID string, prefs domain.ChargePreferences) (string, error) {
	quoted, err := json.Marshal(deviceID)
	if err != nil {
		return "", fmt.Errorf("quote device id: %w", err)
	}
	timeValue, err := json.Marshal(prefs.TargetTime)
	if err != nil {
		return "", fmt.Errorf("quote target time: %w", err)
	}

	schedules := make([]string, 0, len(weekdays))
	for _, day := range weekdays {
		schedules = append(schedules, fmt.Sprintf(
			"{ dayOfWeek: %s, time: %s, max: %d }", day, timeValue, prefs.TargetPercentage,
		))
	}

	return `mutation setDevicePreferences {
  setDevicePreferences(input: {
    deviceId: ` + string(quoted) + `
    mode: CHARGE
    unit: PERCENTAGE
    schedules: [` + strings.Join(schedules, ", ") + `]
  }) {
    id
  }
}`, nil
}
