package jack

import "fmt"

// TypeChecker walks a 'jack.Program' verifying the two structural properties the
// grammar itself cannot enforce on its own: every variable referenced actually
// resolves in some scope, and every subroutine called actually exists on its
// target class. Full type inference (matching declared types against usage) is
// out of scope; this is a grammar-level completeness pass only.
type TypeChecker struct {
	program Program
	scopes  ScopeTable // Keeps track of the scopes and declared variables inside each one
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program}
}

func (tc *TypeChecker) Check() (bool, error) {
	if tc.program == nil {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		_, err := tc.HandleClass(class)
		if err != nil {
			return false, fmt.Errorf("error type-checking class '%s': %w", name, err)
		}

	}

	return true, nil
}

// Specialized function to type-check a 'jack.Class' and nested fields.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer tc.scopes.PopClassScope()      // Discard the class scope after processing

	for _, entry := range class.Fields.Entries() {
		tc.scopes.RegisterVariable(entry.Value)
	}

	for _, entry := range class.Subroutines.Entries() {
		_, err := tc.HandleSubroutine(entry.Value)
		if err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", entry.Key, class.Name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Subroutine' and nested fields.
func (tc *TypeChecker) HandleSubroutine(subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine function being processed
	defer tc.scopes.PopSubroutineScope()           // Reset the function name after processing

	if subroutine.Type == Method {
		tc.scopes.RegisterVariable(Variable{Name: "this", Type: Parameter, DataType: Object, ClassName: tc.currentClassName()})
	}

	// We add to the current scope also all of the arguments of the subroutine
	for _, arg := range subroutine.Arguments {
		// Like this we're actually supporting shadowing of variables, so if a variable
		// with the same name is already present in the current scope, we just temporarily
		// override it with the most update one instead of returning an error (like Go does)
		tc.scopes.RegisterVariable(arg)
	}

	for _, stmt := range subroutine.Statements {
		_, err := tc.HandleStatement(stmt)
		if err != nil {
			return false, fmt.Errorf("error handling nested statement %T: %w", stmt, err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple statements types.
func (tc *TypeChecker) HandleStatement(stmt Statement) (bool, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		return tc.HandleFuncCallExpr(tStmt.FuncCall)
	case VarStmt:
		return tc.HandleVarStmt(tStmt)
	case LetStmt:
		return tc.HandleLetStmt(tStmt)
	case IfStmt:
		return tc.HandleIfStmt(tStmt)
	case WhileStmt:
		return tc.HandleWhileStmt(tStmt)
	case ReturnStmt:
		return tc.HandleReturnStmt(tStmt)
	default:
		return false, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

func (tc *TypeChecker) HandleVarStmt(statement VarStmt) (bool, error) {
	for _, variable := range statement.Vars {
		tc.scopes.RegisterVariable(variable)
	}
	return true, nil
}

func (tc *TypeChecker) HandleLetStmt(statement LetStmt) (bool, error) {
	if _, err := tc.HandleExpression(statement.Rhs); err != nil {
		return false, fmt.Errorf("error handling RHS expression: %w", err)
	}

	switch lhs := statement.Lhs.(type) {
	case VarExpr:
		if _, err := tc.HandleVarExpr(lhs); err != nil {
			return false, fmt.Errorf("error resolving LHS variable '%s': %w", lhs.Var, err)
		}
	case ArrayExpr:
		if _, err := tc.HandleArrayExpr(lhs); err != nil {
			return false, fmt.Errorf("error handling LHS array expression: %w", err)
		}
	default:
		return false, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
	}

	return true, nil
}

func (tc *TypeChecker) HandleIfStmt(statement IfStmt) (bool, error) {
	if _, err := tc.HandleExpression(statement.Condition); err != nil {
		return false, fmt.Errorf("error handling if condition expression: %w", err)
	}

	for _, stmt := range statement.ThenBlock {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in 'then' block: %w", err)
		}
	}

	for _, stmt := range statement.ElseBlock {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in 'else' block: %w", err)
		}
	}

	return true, nil
}

func (tc *TypeChecker) HandleWhileStmt(statement WhileStmt) (bool, error) {
	if _, err := tc.HandleExpression(statement.Condition); err != nil {
		return false, fmt.Errorf("error handling while condition expression: %w", err)
	}

	for _, stmt := range statement.Block {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in while block: %w", err)
		}
	}

	return true, nil
}

func (tc *TypeChecker) HandleReturnStmt(statement ReturnStmt) (bool, error) {
	if statement.Expr == nil {
		return true, nil
	}

	if _, err := tc.HandleExpression(statement.Expr); err != nil {
		return false, fmt.Errorf("error handling return expression: %w", err)
	}
	return true, nil
}

// Generalized function to type-check multiple expression types.
func (tc *TypeChecker) HandleExpression(expr Expression) (bool, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		return tc.HandleVarExpr(tExpr)
	case LiteralExpr:
		return true, nil // Literals carry no identifier that needs resolving
	case ArrayExpr:
		return tc.HandleArrayExpr(tExpr)
	case UnaryExpr:
		return tc.HandleExpression(tExpr.Rhs)
	case BinaryExpr:
		if _, err := tc.HandleExpression(tExpr.Lhs); err != nil {
			return false, err
		}
		return tc.HandleExpression(tExpr.Rhs)
	case FuncCallExpr:
		return tc.HandleFuncCallExpr(tExpr)
	default:
		return false, fmt.Errorf("unrecognized expression: %T", expr)
	}
}

func (tc *TypeChecker) HandleVarExpr(expression VarExpr) (bool, error) {
	if expression.Var == "this" {
		return true, nil
	}

	if _, _, err := tc.scopes.ResolveVariable(expression.Var); err != nil {
		return false, fmt.Errorf("error resolving variable '%s': %w", expression.Var, err)
	}
	return true, nil
}

func (tc *TypeChecker) HandleArrayExpr(expression ArrayExpr) (bool, error) {
	if _, err := tc.HandleVarExpr(VarExpr{Var: expression.Var}); err != nil {
		return false, fmt.Errorf("error handling base variable expression: %w", err)
	}
	if _, err := tc.HandleExpression(expression.Index); err != nil {
		return false, fmt.Errorf("error handling index expression: %w", err)
	}
	return true, nil
}

func (tc *TypeChecker) HandleFuncCallExpr(expression FuncCallExpr) (bool, error) {
	for _, arg := range expression.Arguments {
		if _, err := tc.HandleExpression(arg); err != nil {
			return false, fmt.Errorf("error handling argument expression: %w", err)
		}
	}

	if !expression.IsExtCall {
		className := tc.currentClassName()
		class, exists := tc.program[className]
		if !exists {
			return false, fmt.Errorf("class definition not found for '%s'", className)
		}
		if _, exists := class.Subroutines.Get(expression.FuncName); !exists {
			return false, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, className)
		}
		return true, nil
	}

	// Qualified call: either a variable-scoped method call or a class-scoped function/constructor call.
	if _, variable, err := tc.scopes.ResolveVariable(expression.Var); err == nil {
		if variable.DataType != Object {
			return false, fmt.Errorf("variable '%s' is not an object", expression.Var)
		}
		class, exists := tc.program[variable.ClassName]
		if !exists {
			return false, fmt.Errorf("class definition not found for '%s'", variable.ClassName)
		}
		if _, exists := class.Subroutines.Get(expression.FuncName); !exists {
			return false, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, variable.ClassName)
		}
		return true, nil
	}

	class, exists := tc.program[expression.Var]
	if !exists {
		return false, fmt.Errorf("class definition not found for '%s'", expression.Var)
	}
	if _, exists := class.Subroutines.Get(expression.FuncName); !exists {
		return false, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, expression.Var)
	}
	return true, nil
}

// currentClassName extracts the class name from the scope table's fully qualified
// scope string (e.g. "Foo.bar" or "Foo.Global" both yield "Foo").
func (tc *TypeChecker) currentClassName() string {
	scope := tc.scopes.GetScope()
	for i := 0; i < len(scope); i++ {
		if scope[i] == '.' {
			return scope[:i]
		}
	}
	return scope
}
