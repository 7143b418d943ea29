// Package student holds the read-only view of students that the receipt
// desk consumes from the external student-record service.
//
// The package defines two entities, the roster type and one port:
//
//   - Summary: an {ID, Name} pair from the directory listing, used to drive
//     the operator's selection control.
//   - Detail: the full record fetched when an operator picks a student.
//   - Directory: the roster, one Summary per student.
//   - Source: the contract the infrastructure layer implements to fetch
//     both over the network.
//
// Nothing here is persisted by receipt-desk. A Summary lives as long as one
// directory load; a Detail is replaced wholesale by the next selection.
//
//	students, err := source.ListStudents(ctx)
//	detail, err := source.GetStudent(ctx, students[0].ID)
package student
