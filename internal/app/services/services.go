// Package services holds the business logic of the ticketing back-office.
//
// Services defined in this package:
//   - AuthService: operator login and profile
//   - OperatorService: administration of operator accounts
//   - StudentService: the student registry and the payment cascade
//   - ImportService: spreadsheet import of students
//   - TicketService: manual ticket management and QR rendering
//   - IssuanceService: signed ticket issuance, single and bulk
//   - DeliveryService and DeliveryRunner: paced bulk email delivery
//   - ValidationService: one-time ticket consumption at the gate
//   - StatsService: dashboard statistics
//
// Each service depends on the narrow store interfaces in stores.go.
package services
