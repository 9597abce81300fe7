// Package kubernetes provides the core.ApplyTarget implementation that
// submits objects to a cluster with Server-Side Apply.
package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"

	"github.com/otterscale/fluxstrap/internal/config"
	"github.com/otterscale/fluxstrap/internal/core"
)

const meterName = "github.com/otterscale/fluxstrap/internal/providers/kubernetes"

// crdGVR is the GroupVersionResource for apiextensions.k8s.io/v1
// CustomResourceDefinitions, used to poll CRD status.
var crdGVR = schema.GroupVersionResource{
	Group:    "apiextensions.k8s.io",
	Version:  "v1",
	Resource: "customresourcedefinitions",
}

// clients bundles everything the Applier needs from the cluster.
type clients struct {
	dynamic dynamic.Interface
	kube    kubernetes.Interface
	mapper  meta.ResettableRESTMapper
}

// Applier implements core.ApplyTarget. Cluster clients are created on
// first use so that commands which never touch a cluster do not need
// credentials.
type Applier struct {
	fieldManager    string
	maxRequestBytes int
	crdTimeout      time.Duration
	pollInterval    time.Duration

	clients func() (*clients, error)

	// mu serialises applies; the REST mapper is reset after every CRD.
	mu sync.Mutex

	units    metric.Int64Counter
	duration metric.Float64Histogram
	log      *slog.Logger
}

// Verify at compile time that Applier satisfies core.ApplyTarget.
var _ core.ApplyTarget = (*Applier)(nil)

// NewApplier returns an Applier for the cluster selected by the
// kubeconfig setting.
func NewApplier(conf *config.Config) (*Applier, error) {
	kubeconfig := conf.KubeConfig()
	return newApplier(conf.ApplyFieldManager(), conf.ApplyMaxRequestBytes(), conf.ApplyCRDTimeout(),
		sync.OnceValues(func() (*clients, error) {
			return newClients(kubeconfig)
		}),
	)
}

func newApplier(fieldManager string, maxRequestBytes int, crdTimeout time.Duration, c func() (*clients, error)) (*Applier, error) {
	meter := otel.Meter(meterName)

	units, err := meter.Int64Counter("fluxstrap_apply_units",
		metric.WithDescription("Objects submitted to the cluster, by chain, kind and result."),
	)
	if err != nil {
		return nil, fmt.Errorf("create apply counter: %w", err)
	}

	duration, err := meter.Float64Histogram("fluxstrap_apply_duration",
		metric.WithDescription("Time spent applying a single object, including CRD establishment."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create apply histogram: %w", err)
	}

	return &Applier{
		fieldManager:    fieldManager,
		maxRequestBytes: maxRequestBytes,
		crdTimeout:      crdTimeout,
		pollInterval:    2 * time.Second,
		clients:         c,
		units:           units,
		duration:        duration,
		log:             slog.Default().With("component", "kubernetes-applier"),
	}, nil
}

func newClients(kubeconfig string) (*clients, error) {
	cfg, err := restConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("load cluster config: %w", err)
	}

	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	kube, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}

	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create discovery client: %w", err)
	}

	return &clients{
		dynamic: dyn,
		kube:    kube,
		mapper:  restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(disc)),
	}, nil
}

// Apply submits obj with Server-Side Apply. When obj is a CRD the call
// blocks until the CRD is Established and the REST mapper is reset so
// that later objects of the new kind can be mapped.
func (a *Applier) Apply(ctx context.Context, chain string, obj *unstructured.Unstructured) (err error) {
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		attrs := metric.WithAttributes(
			attribute.String("chain", chain),
			attribute.String("kind", obj.GetKind()),
			attribute.String("result", result),
		)
		a.units.Add(ctx, 1, attrs)
		a.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	if a.maxRequestBytes > 0 && len(data) > a.maxRequestBytes {
		return &core.ErrPayloadTooLarge{Size: len(data), Limit: a.maxRequestBytes}
	}

	c, err := a.clients()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.patch(ctx, c, obj, data); err != nil {
		return err
	}

	if obj.GetKind() != "CustomResourceDefinition" {
		return nil
	}

	if err := a.waitForCRD(ctx, c, obj.GetName()); err != nil {
		return err
	}
	c.mapper.Reset()
	return nil
}

// patch maps the object's GVK into a GVR and issues a PATCH with
// ApplyPatchType.
func (a *Applier) patch(ctx context.Context, c *clients, obj *unstructured.Unstructured, data []byte) error {
	gvk := obj.GroupVersionKind()
	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return fmt.Errorf("map GVK %s: %w", gvk, err)
	}

	force := true
	patchOpts := metav1.PatchOptions{
		FieldManager: a.fieldManager,
		Force:        &force,
	}

	var client dynamic.ResourceInterface
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		namespace := obj.GetNamespace()
		if namespace == "" {
			namespace = metav1.NamespaceDefault
		}
		client = c.dynamic.Resource(mapping.Resource).Namespace(namespace)
	} else {
		client = c.dynamic.Resource(mapping.Resource)
	}

	if _, err := client.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, patchOpts); err != nil {
		return fmt.Errorf("apply %s %s: %w", gvk.Kind, obj.GetName(), err)
	}
	return nil
}

// waitForCRD blocks until the named CRD has the Established condition
// set to True, polling until the configured timeout.
func (a *Applier) waitForCRD(ctx context.Context, c *clients, name string) error {
	a.log.Info("waiting for CRD to be established", "name", name)

	err := wait.PollUntilContextTimeout(ctx, a.pollInterval, a.crdTimeout, true,
		func(ctx context.Context) (bool, error) {
			obj, err := c.dynamic.Resource(crdGVR).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				if isTransient(err) {
					return false, nil
				}
				return false, err
			}
			return isCRDEstablished(obj), nil
		},
	)
	if err != nil {
		return fmt.Errorf("CRD %s did not become established: %w", name, err)
	}

	a.log.Info("CRD established", "name", name)
	return nil
}

// EnsureNamespace creates the namespace when it does not exist yet.
func (a *Applier) EnsureNamespace(ctx context.Context, name string) error {
	c, err := a.clients()
	if err != nil {
		return err
	}

	_, err = c.kube.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("get namespace %s: %w", name, err)
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if _, err := c.kube.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{FieldManager: a.fieldManager}); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("create namespace %s: %w", name, err)
	}

	a.log.Info("created namespace", "name", name)
	return nil
}

// isCRDEstablished inspects the CRD status conditions for
// type=Established, status=True.
func isCRDEstablished(obj *unstructured.Unstructured) bool {
	conditions, found, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil || !found {
		return false
	}
	for _, c := range conditions {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if m["type"] == "Established" && m["status"] == "True" {
			return true
		}
	}
	return false
}
