package volumeindex

import (
	"context"
	"strings"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// SubvolumePathAttribute is the CSI volume attribute ceph-csi sets to the
// CephFS path backing a volume.
const SubvolumePathAttribute = "subvolumePath"

// DefaultDriverFilter matches ceph-csi CephFS drivers such as cephfs.csi.ceph.com.
const DefaultDriverFilter = "cephfs"

type claimKey struct {
	namespace string
	name      string
}

// Builder lists pods and persistent volumes and joins them into a Mapping.
type Builder struct {
	client kubernetes.Interface
	driver string
	logger logr.Logger
}

// NewBuilder creates a Builder selecting volumes whose CSI driver name
// contains driver.
func NewBuilder(client kubernetes.Interface, driver string, logger logr.Logger) *Builder {
	if driver == "" {
		driver = DefaultDriverFilter
	}
	return &Builder{
		client: client,
		driver: driver,
		logger: logger.WithName("volume-index-builder"),
	}
}

// Build produces a fresh Mapping from current cluster state.
func (b *Builder) Build(ctx context.Context) (Mapping, error) {
	pods, err := b.client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &ClusterAPIError{Resource: "pods", Err: err}
	}
	pvs, err := b.client.CoreV1().PersistentVolumes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &ClusterAPIError{Resource: "persistentvolumes", Err: err}
	}

	claimPods := indexClaimPods(pods.Items)

	m := make(Mapping)
	owners := make(map[string]*corev1.Pod)
	for i := range pvs.Items {
		pv := &pvs.Items[i]
		if !b.matchesDriver(pv) {
			continue
		}
		ref := pv.Spec.ClaimRef
		if ref == nil {
			continue
		}
		path := pv.Spec.CSI.VolumeAttributes[SubvolumePathAttribute]
		if path == "" {
			b.logger.V(1).Info("Skipping volume without subvolume path", "pv", pv.Name)
			continue
		}

		for _, pod := range claimPods[claimKey{namespace: ref.Namespace, name: ref.Name}] {
			if prev, ok := owners[path]; ok {
				if !preferPod(pod, prev) {
					continue
				}
				b.logger.V(1).Info("Subvolume path claimed by multiple pods",
					"path", path,
					"kept", pod.Namespace+"/"+pod.Name,
					"dropped", prev.Namespace+"/"+prev.Name)
			}
			owners[path] = pod
			m[path] = Entry{
				SubvolumePath: path,
				Namespace:     pod.Namespace,
				Name:          pod.Name,
				Node:          pod.Status.HostIP,
			}
		}
	}
	return m, nil
}

func (b *Builder) matchesDriver(pv *corev1.PersistentVolume) bool {
	return pv.Spec.CSI != nil && strings.Contains(pv.Spec.CSI.Driver, b.driver)
}

// indexClaimPods groups pods by every claim they mount.
func indexClaimPods(pods []corev1.Pod) map[claimKey][]*corev1.Pod {
	idx := make(map[claimKey][]*corev1.Pod)
	for i := range pods {
		pod := &pods[i]
		seen := make(map[string]struct{}, len(pod.Spec.Volumes))
		for _, vol := range pod.Spec.Volumes {
			if vol.PersistentVolumeClaim == nil {
				continue
			}
			name := vol.PersistentVolumeClaim.ClaimName
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			key := claimKey{namespace: pod.Namespace, name: name}
			idx[key] = append(idx[key], pod)
		}
	}
	return idx
}

// preferPod decides which of two pods sharing a subvolume path owns it:
// running pods first, then the newest, then the lowest namespace/name.
func preferPod(candidate, current *corev1.Pod) bool {
	cr := candidate.Status.Phase == corev1.PodRunning
	pr := current.Status.Phase == corev1.PodRunning
	if cr != pr {
		return cr
	}
	ct, pt := candidate.CreationTimestamp, current.CreationTimestamp
	if !ct.Equal(&pt) {
		return pt.Before(&ct)
	}
	return candidate.Namespace+"/"+candidate.Name < current.Namespace+"/"+current.Name
}
