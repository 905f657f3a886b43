// Package infra contém as implementações concretas dos contratos de admissão.
//
//   - ClientStore: token bucket por cliente usando golang.org/x/time/rate
//   - SlotPool: semáforo em channel para o limite de concorrência
package infra
