// Package domain contains the core business entities of the quest board:
// tasks, users, completion facts and the shared Rank enumeration used both
// for task complexity and for a user's class. It is independent of any
// specific infrastructure or delivery mechanism.
package domain
